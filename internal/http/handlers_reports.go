package http

import (
	"mime"
	"net/http"

	zlog "zenith/internal/log"
	"zenith/internal/metrics"
	"zenith/internal/reports"
)

type reportData struct {
	View    metrics.ReportView
	Periods []metrics.Period
}

func (s *Server) reportFor(w http.ResponseWriter, r *http.Request) (metrics.ReportView, bool) {
	p, err := metrics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Unknown period", err.Error())
		return metrics.ReportView{}, false
	}
	return metrics.Report(s.store.List(), s.registry.All(), p, s.now()), true
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	view, ok := s.reportFor(w, r)
	if !ok {
		return
	}
	name := "reports_page"
	if isHTMX(r) && r.Header.Get("HX-Target") == "report" {
		name = "report_content"
	}
	s.render(w, r, http.StatusOK, name, reportData{View: view, Periods: metrics.Periods})
}

// handleStatementPDF renders the same period as a downloadable statement.
func (s *Server) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	view, ok := s.reportFor(w, r)
	if !ok {
		return
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := reports.WriteStatement(buf, view, s.registry, s.now()); err != nil {
		s.events.LogError(r.Context(), "Statement rendering failed", err, zlog.ComponentReports, "statement",
			zlog.NewFields().WithOperation("statement"))
		InternalServerError("The statement could not be generated.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": reports.Filename(view)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
