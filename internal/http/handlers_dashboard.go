package http

import (
	"net/http"

	"zenith/internal/core"
	"zenith/internal/metrics"
)

type dashboardData struct {
	View       metrics.DashboardView
	Recent     []core.Transaction
	Categories []core.Category
	AIEnabled  bool
}

const recentOnDashboard = 8

func (s *Server) dashboardData() dashboardData {
	txs := s.store.List()
	recent := recentFirst(txs)
	if len(recent) > recentOnDashboard {
		recent = recent[:recentOnDashboard]
	}
	return dashboardData{
		View:       metrics.Dashboard(txs, s.registry.All(), s.now()),
		Recent:     recent,
		Categories: s.registry.All(),
		AIEnabled:  s.assistant != nil,
	}
}

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard_page", s.dashboardData())
}

// handleDashboardPartial re-renders the dashboard body after a change.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard_content", s.dashboardData())
}

// handleCategories lists categories, optionally of one type.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.registry.All())
		return
	}
	t, err := core.ParseTransactionType(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.registry.ByType(t))
}

// handleSummary returns the dashboard figures as JSON.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Dashboard(s.store.List(), s.registry.All(), s.now()))
}
