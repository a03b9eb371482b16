package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/cards"
	"github.com/strataisp/console/internal/store"
)

// CardService is the slice of the cards service the API uses.
type CardService interface {
	CreateBatch(ctx context.Context, in cards.BatchInput) (store.CardBatch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (store.CardBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]store.CardBatch, error)
	ListBatchCards(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]store.Card, error)
	Redeem(ctx context.Context, code, subscriberID string) (store.Card, error)
	VoidBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

type createBatchRequest struct {
	PlanID       string `json:"plan_id"`
	Count        int    `json:"count"`
	ValidityDays int    `json:"validity_days"`
	Prefix       string `json:"prefix"`
}

type redeemRequest struct {
	Code         string `json:"code"`
	SubscriberID string `json:"subscriber_id"`
}

type cardBatchResponse struct {
	ID           uuid.UUID `json:"id"`
	PlanID       string    `json:"plan_id"`
	Prefix       string    `json:"prefix,omitempty"`
	Count        int       `json:"count"`
	ValidityDays int       `json:"validity_days"`
	ExportURI    string    `json:"export_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

// cardResponse never carries the code; plaintext codes exist only in
// the batch export.
type cardResponse struct {
	ID         uuid.UUID  `json:"id"`
	BatchID    uuid.UUID  `json:"batch_id"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RedeemedBy *string    `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
}

func toCardBatchResponse(b store.CardBatch) cardBatchResponse {
	return cardBatchResponse{
		ID:           b.ID,
		PlanID:       b.PlanID,
		Prefix:       b.Prefix,
		Count:        b.Count,
		ValidityDays: b.ValidityDays,
		ExportURI:    b.ExportURI,
		CreatedAt:    b.CreatedAt,
	}
}

func toCardResponse(c store.Card) cardResponse {
	return cardResponse{
		ID:         c.ID,
		BatchID:    c.BatchID,
		Status:     string(c.Status),
		ExpiresAt:  c.ExpiresAt,
		RedeemedBy: c.RedeemedBy,
		RedeemedAt: c.RedeemedAt,
	}
}

func (s *Server) createCardBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	batch, err := s.svc.Cards.CreateBatch(r.Context(), cards.BatchInput{
		PlanID:       req.PlanID,
		Count:        req.Count,
		ValidityDays: req.ValidityDays,
		Prefix:       req.Prefix,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardBatchResponse(batch))
}

func (s *Server) listCardBatches(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	batches, err := s.svc.Cards.ListBatches(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]cardBatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toCardBatchResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": out})
}

func (s *Server) getCardBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathUUID(r, "batch_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	batch, err := s.svc.Cards.GetBatch(r.Context(), batchID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardBatchResponse(batch))
}

func (s *Server) listBatchCards(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathUUID(r, "batch_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	limit, offset := parsePage(r)
	list, err := s.svc.Cards.ListBatchCards(r.Context(), batchID, limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]cardResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCardResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": out})
}

func (s *Server) redeemCard(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	card, err := s.svc.Cards.Redeem(r.Context(), req.Code, req.SubscriberID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

func (s *Server) voidCardBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathUUID(r, "batch_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	voided, err := s.svc.Cards.VoidBatch(r.Context(), batchID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voided": voided})
}
