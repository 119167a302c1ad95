package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"zenith/internal/files"
	zlog "zenith/internal/log"
	"zenith/internal/transactions"
)

// importPayload returns the uploaded document and the best guess at its
// format: the explicit format field, then the file name, then the
// Content-Type.
func importPayload(r *http.Request) (io.Reader, files.Format, error) {
	explicit := r.URL.Query().Get("format")
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(files.MaxImportBytes); err != nil {
			return nil, "", fmt.Errorf("read upload: %w", err)
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("missing file field: %w", err)
		}
		if v := r.FormValue("format"); v != "" {
			explicit = v
		}
		for _, candidate := range []string{explicit, hdr.Filename, hdr.Header.Get("Content-Type")} {
			if f, err := formatFrom(candidate); err == nil {
				return file, f, nil
			}
		}
		return nil, "", fmt.Errorf("cannot tell the format of %q; use .json, .csv or .yaml", hdr.Filename)
	}

	for _, candidate := range []string{explicit, mediaType} {
		if f, err := formatFrom(candidate); err == nil {
			return r.Body, f, nil
		}
	}
	return nil, "", errors.New("unknown import format; pass ?format=json, csv or yaml")
}

func formatFrom(s string) (files.Format, error) {
	switch {
	case s == "":
		return "", errors.New("empty")
	case strings.Contains(s, "/"):
		mt, _, _ := mime.ParseMediaType(s)
		switch mt {
		case "application/json":
			return files.JSON, nil
		case "text/csv":
			return files.CSV, nil
		case "application/yaml", "application/x-yaml", "text/yaml":
			return files.YAML, nil
		}
		return "", fmt.Errorf("unsupported media type %q", s)
	}
	return files.ParseFormat(s)
}

// handleImport adds every row of an uploaded document or none of them.
// htmx callers get an HTML fragment, everyone else JSON.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, files.MaxImportBytes+maxFormBytes)

	fail := func(status int, msg string) {
		if isHTMX(r) {
			ErrorResponse(status, msg).Write(w)
			return
		}
		writeJSONError(w, status, msg)
	}

	body, format, err := importPayload(r)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	drafts, err := files.Import(body, format)
	if err != nil {
		s.logger.InfoContext(ctx, "Rejected import", zlog.FieldFormat, format, zlog.FieldError, err)
		fail(http.StatusUnprocessableEntity, err.Error())
		return
	}
	added, err := s.store.Import(ctx, drafts)
	var persistErr *transactions.PersistError
	switch {
	case err == nil:
	case errors.As(err, &persistErr):
		atomic.AddInt64(&s.appMetrics.persistFailures, 1)
		s.events.LogError(ctx, "Import kept in memory only", err, zlog.ComponentStorage, "import",
			zlog.NewFields().WithCount(len(added)))
	case isValidation(err):
		s.logger.InfoContext(ctx, "Rejected import", zlog.FieldFormat, format, zlog.FieldError, err)
		fail(http.StatusUnprocessableEntity, err.Error())
		return
	default:
		s.events.LogError(ctx, "Import failed", err, zlog.ComponentHTTP, "import", nil)
		fail(http.StatusInternalServerError, "import failed")
		return
	}

	atomic.AddInt64(&s.appMetrics.imported, int64(len(added)))
	s.logger.InfoContext(ctx, "Transactions imported", zlog.FieldCount, len(added), zlog.FieldFormat, format)

	if !isHTMX(r) {
		ids := make([]string, len(added))
		for i, tx := range added {
			ids[i] = tx.ID
		}
		out := map[string]any{"imported": len(added), "ids": ids}
		if persistErr != nil {
			out["warning"] = persistWarning
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	resp := NewHTMXResponse().
		BodyHTML(fmt.Sprintf(`<div class="success" role="status">Imported %d transactions.</div>`, len(added))).
		TriggerTransactionsImported(len(added))
	if persistErr != nil {
		resp.TriggerWarningNotification(persistWarning)
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Imported %d transactions", len(added)))
	}
	resp.Write(w)
}

// handleExport downloads every transaction in the requested format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(files.JSON)
	}
	format, err := files.ParseFormat(raw)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := files.Export(buf, format, recentFirst(s.store.List()), s.registry); err != nil {
		s.events.LogError(r.Context(), "Export failed", err, zlog.ComponentFiles, "export", nil)
		InternalServerError("Export failed").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.exports, 1)
	name := fmt.Sprintf("zenith-transactions-%s.%s", s.now().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
