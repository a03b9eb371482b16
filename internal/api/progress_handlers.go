package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/store"
)

type jobProgressResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	Kind       string    `json:"kind"`
	Stage      string    `json:"stage"`
	RowsDone   int64     `json:"rows_done"`
	RowsFailed int64     `json:"rows_failed"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toJobProgressResponse(p store.JobProgress) jobProgressResponse {
	return jobProgressResponse{
		JobID:      p.JobID,
		Kind:       p.Kind,
		Stage:      p.Stage,
		RowsDone:   p.RowsDone,
		RowsFailed: p.RowsFailed,
		Message:    p.Message,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (s *Server) listJobProgress(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	var kind *string
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := raw
		kind = &k
	}
	list, err := s.svc.Progress.ListProgress(r.Context(), kind, limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]jobProgressResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toJobProgressResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) getJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(r, "job_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	p, err := s.svc.Progress.GetProgress(r.Context(), jobID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobProgressResponse(p))
}
