package api

import (
	"context"
	"net/http"

	"github.com/strataisp/console/internal/dashboard"
)

// DashboardService is the slice of the dashboard service the API uses.
type DashboardService interface {
	Summary(ctx context.Context) (dashboard.Summary, error)
	Refresh(ctx context.Context) error
}

func (s *Server) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard.Summary(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) dashboardRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Dashboard.Refresh(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
