package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"zenith/internal/core"
	"zenith/internal/transactions"
)

// maxFormBytes bounds form and JSON bodies outside of imports.
const maxFormBytes = 64 << 10

// ParseDraft reads a transaction form. Field errors wrap the core
// validation sentinels so callers can answer 422.
func ParseDraft(form url.Values) (transactions.Draft, error) {
	date, err := core.ParseDate(sanitizeInput(form.Get("date")))
	if err != nil {
		return transactions.Draft{}, err
	}
	cents, err := core.ParseDecimalToCents(sanitizeInput(form.Get("amount")))
	if err != nil {
		return transactions.Draft{}, err
	}
	typ, err := core.ParseTransactionType(form.Get("type"))
	if err != nil {
		return transactions.Draft{}, err
	}
	return transactions.Draft{
		Date:        date,
		Description: sanitizeInput(form.Get("description")),
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Category:    sanitizeInput(form.Get("category")),
	}, nil
}

// ListFilter narrows the transaction list.
type ListFilter struct {
	Type  core.TransactionType // empty means both
	Query string
}

// ParseListFilter ignores an unknown type rather than failing the page.
func ParseListFilter(query url.Values) ListFilter {
	f := ListFilter{Query: sanitizeInput(query.Get("q"))}
	if t, err := core.ParseTransactionType(query.Get("type")); err == nil {
		f.Type = t
	}
	return f
}

// Match reports whether tx passes the filter. The text query matches the
// description or the category name, case-insensitively.
func (f ListFilter) Match(tx core.Transaction, reg *core.Registry) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(tx.Description), q) ||
		strings.Contains(strings.ToLower(reg.Resolve(tx.CategoryID)), q)
}

// bodyFields is a flat view of a small JSON object or urlencoded body.
// Nested JSON values are dropped.
type bodyFields map[string]string

// readBodyFields reads at most maxFormBytes. A body starting with '{' is
// JSON regardless of Content-Type, which keeps fetch() and hx-post callers
// interchangeable.
func readBodyFields(r *http.Request) (bodyFields, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	fields := bodyFields{}
	switch {
	case len(raw) == 0:
	case raw[0] == '{':
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		for k, v := range obj {
			if s, ok := scalarString(v); ok {
				fields[k] = s
			}
		}
	default:
		vals, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, err
		}
		for k := range vals {
			fields[k] = vals.Get(k)
		}
	}
	return fields, nil
}

func (f bodyFields) Get(key string) string {
	return sanitizeInput(f[key])
}

// Uint returns 0 for a missing or malformed value.
func (f bodyFields) Uint(key string) uint64 {
	n, _ := strconv.ParseUint(f.Get(key), 10, 64)
	return n
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

// RequireMethod returns a 405 response when r.Method is not one of methods,
// nil otherwise.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the form, answering 400 when it cannot. net/http
// ignores DELETE bodies, so those are read here and the confirmation flag
// can travel in them.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if r.Method == http.MethodDelete && r.PostForm == nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return BadRequestError("Invalid request body")
		}
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return BadRequestError("Invalid request body")
		}
		r.PostForm = vals
	}
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request body")
	}
	return nil
}
