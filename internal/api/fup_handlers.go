package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/fup"
	"github.com/strataisp/console/internal/store"
)

// FUPService is the slice of the fair-use service the API uses.
type FUPService interface {
	Create(ctx context.Context, in fup.ProfileInput) (store.FUPProfile, error)
	Get(ctx context.Context, profileID uuid.UUID) (store.FUPProfile, error)
	List(ctx context.Context, enabledOnly bool) ([]store.FUPProfile, error)
	Update(ctx context.Context, profileID uuid.UUID, in fup.ProfileInput) (store.FUPProfile, error)
	Delete(ctx context.Context, profileID uuid.UUID) error
}

type fupProfileRequest struct {
	Name             string     `json:"name"`
	QuotaMB          int64      `json:"quota_mb"`
	Cycle            string     `json:"cycle"`
	ActionOnExceed   string     `json:"action_on_exceed"`
	ThrottleRateKbps int        `json:"throttle_rate_kbps"`
	NotifyTemplateID *uuid.UUID `json:"notify_template_id,omitempty"`
	Enabled          bool       `json:"enabled"`
}

type fupProfileResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	QuotaMB          int64      `json:"quota_mb"`
	Cycle            string     `json:"cycle"`
	ActionOnExceed   string     `json:"action_on_exceed"`
	ThrottleRateKbps int        `json:"throttle_rate_kbps"`
	NotifyTemplateID *uuid.UUID `json:"notify_template_id,omitempty"`
	Enabled          bool       `json:"enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toFUPProfileResponse(p store.FUPProfile) fupProfileResponse {
	return fupProfileResponse{
		ID:               p.ID,
		Name:             p.Name,
		QuotaMB:          p.QuotaMB,
		Cycle:            string(p.Cycle),
		ActionOnExceed:   string(p.ActionOnExceed),
		ThrottleRateKbps: p.ThrottleRateKbps,
		NotifyTemplateID: p.NotifyTemplateID,
		Enabled:          p.Enabled,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toFUPProfileInput(req fupProfileRequest) fup.ProfileInput {
	return fup.ProfileInput{
		Name:             req.Name,
		QuotaMB:          req.QuotaMB,
		Cycle:            store.FUPCycle(req.Cycle),
		ActionOnExceed:   store.FUPAction(req.ActionOnExceed),
		ThrottleRateKbps: req.ThrottleRateKbps,
		NotifyTemplateID: req.NotifyTemplateID,
		Enabled:          req.Enabled,
	}
}

func (s *Server) createFUPProfile(w http.ResponseWriter, r *http.Request) {
	var req fupProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	profile, err := s.svc.FUP.Create(r.Context(), toFUPProfileInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFUPProfileResponse(profile))
}

func (s *Server) listFUPProfiles(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	profiles, err := s.svc.FUP.List(r.Context(), enabledOnly)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]fupProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toFUPProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (s *Server) getFUPProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathUUID(r, "profile_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	profile, err := s.svc.FUP.Get(r.Context(), profileID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFUPProfileResponse(profile))
}

func (s *Server) updateFUPProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathUUID(r, "profile_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	var req fupProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	profile, err := s.svc.FUP.Update(r.Context(), profileID, toFUPProfileInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFUPProfileResponse(profile))
}

func (s *Server) deleteFUPProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathUUID(r, "profile_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	if err := s.svc.FUP.Delete(r.Context(), profileID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
