package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/campaign"
	"github.com/strataisp/console/internal/store"
)

// CampaignService is the slice of the campaign service the API uses.
type CampaignService interface {
	Create(ctx context.Context, in campaign.CreateInput) (store.Campaign, error)
	Get(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]store.Campaign, error)
	Recipients(ctx context.Context, campaignID uuid.UUID, status *store.RecipientStatus, limit, offset int) ([]store.CampaignRecipient, error)
	Start(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	Cancel(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
}

type createCampaignRequest struct {
	Name           string    `json:"name"`
	TemplateID     uuid.UUID `json:"template_id"`
	AudienceFilter string    `json:"audience_filter"`
}

type campaignResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	TemplateID      uuid.UUID  `json:"template_id"`
	AudienceFilter  string     `json:"audience_filter"`
	Status          string     `json:"status"`
	TotalRecipients int        `json:"total_recipients"`
	SentCount       int        `json:"sent_count"`
	FailedCount     int        `json:"failed_count"`
	SkippedCount    int        `json:"skipped_count"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

type recipientResponse struct {
	SubscriberID string    `json:"subscriber_id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	MessageID    *string   `json:"message_id,omitempty"`
	LastError    *string   `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCampaignResponse(c store.Campaign) campaignResponse {
	return campaignResponse{
		ID:              c.ID,
		Name:            c.Name,
		TemplateID:      c.TemplateID,
		AudienceFilter:  c.AudienceFilter,
		Status:          string(c.Status),
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		SkippedCount:    c.SkippedCount,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		FinishedAt:      c.FinishedAt,
	}
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, err := s.svc.Campaigns.Create(r.Context(), campaign.CreateInput{
		Name:           req.Name,
		TemplateID:     req.TemplateID,
		AudienceFilter: req.AudienceFilter,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCampaignResponse(c))
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	list, err := s.svc.Campaigns.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]campaignResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathUUID(r, "campaign_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}
	c, err := s.svc.Campaigns.Get(r.Context(), campaignID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

func (s *Server) listCampaignRecipients(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathUUID(r, "campaign_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}
	limit, offset := parsePage(r)
	var status *store.RecipientStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := store.RecipientStatus(raw)
		status = &st
	}
	list, err := s.svc.Campaigns.Recipients(r.Context(), campaignID, status, limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]recipientResponse, 0, len(list))
	for _, rec := range list {
		out = append(out, recipientResponse{
			SubscriberID: rec.SubscriberID,
			Phone:        rec.Phone,
			Name:         rec.Name,
			Status:       string(rec.Status),
			MessageID:    rec.MessageID,
			LastError:    rec.LastError,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipients": out})
}

func (s *Server) startCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathUUID(r, "campaign_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}
	c, err := s.svc.Campaigns.Start(r.Context(), campaignID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toCampaignResponse(c))
}

func (s *Server) cancelCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathUUID(r, "campaign_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}
	c, err := s.svc.Campaigns.Cancel(r.Context(), campaignID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}
