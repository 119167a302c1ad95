package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics counts application events for /metrics.
type appMetrics struct {
	created          int64
	updated          int64
	deleted          int64
	imported         int64
	exports          int64
	persistFailures  int64
	suggestions      int64
	suggestionErrors int64
	staleSuggestions int64
	chatQuestions    int64
	uptime           time.Time
}

func newAppMetrics(start time.Time) *appMetrics {
	return &appMetrics{uptime: start}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports whether templates are loaded and the store is
// usable. The AI assistant is optional and only reported.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = map[string]any{
			"status":       "ok",
			"transactions": s.store.Len(),
		}
	}

	if s.suggester == nil && s.assistant == nil {
		checks["ai"] = "disabled"
	} else {
		checks["ai"] = "configured"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	checks["sessions"] = map[string]any{
		"chat_entries": s.chats.Size(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	chatStats := s.chats.Stats()
	m := s.appMetrics

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)

	counter("transactions_created_total", "Transactions created through the UI", atomic.LoadInt64(&m.created))
	counter("transactions_updated_total", "Transactions edited", atomic.LoadInt64(&m.updated))
	counter("transactions_deleted_total", "Transactions deleted", atomic.LoadInt64(&m.deleted))
	counter("transactions_imported_total", "Transactions added by bulk import", atomic.LoadInt64(&m.imported))
	counter("transaction_exports_total", "Export downloads", atomic.LoadInt64(&m.exports))
	counter("storage_persist_failures_total", "Changes applied in memory but not saved", atomic.LoadInt64(&m.persistFailures))
	if s.store != nil {
		gauge("transactions_stored", "Transactions currently held", int64(s.store.Len()))
	}

	counter("ai_suggestions_total", "Category suggestions returned", atomic.LoadInt64(&m.suggestions))
	counter("ai_suggestion_errors_total", "Category suggestions that failed", atomic.LoadInt64(&m.suggestionErrors))
	counter("ai_suggestions_stale_total", "Suggestions discarded as superseded", atomic.LoadInt64(&m.staleSuggestions))
	counter("ai_chat_questions_total", "Questions sent to the assistant", atomic.LoadInt64(&m.chatQuestions))

	counter("chat_session_cache_hits_total", "Chat history cache hits", chatStats.Hits)
	counter("chat_session_cache_misses_total", "Chat history cache misses", chatStats.Misses)

	counter("security_suspicious_requests_total", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)
	counter("security_invalid_ip_total", "Unparseable client addresses", securityMetrics.InvalidIPAttempts)
	counter("rate_limit_rejected_total", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)

	gauge("uptime_seconds", "Seconds since start", int64(s.now().Sub(m.uptime).Seconds()))
}
