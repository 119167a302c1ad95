package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenith/internal/core"
	"zenith/internal/metrics"
	"zenith/internal/transactions"
)

const sessionCookie = "zenith_session"

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func getBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuffer(b *bytes.Buffer) {
	// oversized buffers are left to the GC
	if b.Cap() <= 1<<20 {
		bufPool.Put(b)
	}
}

// sanitizeInput removes control characters (other than tab and newlines)
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sessionID returns the browser session id, issuing a cookie on first use.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" && len(c.Value) <= 64 {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// recentFirst orders by date, newest first. Same-day entries keep stored
// order, which already puts later additions first.
func recentFirst(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out
}

// isValidation reports whether err is a user input problem.
func isValidation(err error) bool {
	var rowErr *transactions.RowError
	if errors.As(err, &rowErr) {
		return true
	}
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrEmptyDescription, core.ErrDescriptionLong,
		core.ErrInvalidType, core.ErrMissingCategory, core.ErrCategoryType,
		core.ErrZeroDate, core.ErrInvalidDate, core.ErrInvalidDay, core.ErrInvalidMonth,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// persistWarning is shown when a change stuck in memory but the slot write failed.
const persistWarning = "Change applied, but it could not be saved to storage. It will be lost on restart."

func templateFuncs(reg *core.Registry) template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format() },
		"signed": func(tx core.Transaction) string {
			if tx.Type == core.Expense {
				return "-" + tx.Amount.Format()
			}
			return "+" + tx.Amount.Format()
		},
		"tone": func(m core.Money) string {
			switch {
			case m.Cents > 0:
				return "positive"
			case m.Cents < 0:
				return "negative"
			}
			return "neutral"
		},
		"pct":      formatPercent,
		"date":     func(d core.Date) string { return d.Format("Jan 2, 2006") },
		"isoDate":  func(d core.Date) string { return d.String() },
		"day":      func(t time.Time) string { return t.Format("Jan 2, 2006") },
		"category": reg.Resolve,
		"lower":    strings.ToLower,
		"spark":    sparkPoints,
		"share":    share,
		"periodLabel": func(p metrics.Period) string {
			return p.Label()
		},
	}
}

func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// sparkPoints maps a series to an SVG polyline in a 100x24 box.
func sparkPoints(series []core.Money) string {
	if len(series) == 0 {
		return ""
	}
	lo, hi := series[0].Cents, series[0].Cents
	for _, m := range series {
		lo = min(lo, m.Cents)
		hi = max(hi, m.Cents)
	}
	span := hi - lo
	var b strings.Builder
	for i, m := range series {
		x := 0.0
		if len(series) > 1 {
			x = float64(i) * 100 / float64(len(series)-1)
		}
		y := 12.0
		if span > 0 {
			y = 22 - float64(m.Cents-lo)*20/float64(span)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(coord(x))
		b.WriteByte(',')
		b.WriteString(coord(y))
	}
	return b.String()
}

// share is part as a percentage of total, for bar widths.
func share(part, total core.Money) float64 {
	if total.Cents <= 0 {
		return 0
	}
	return float64(part.Cents) * 100 / float64(total.Cents)
}
