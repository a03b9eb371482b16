package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strataisp/console/internal/billing"
	"github.com/strataisp/console/internal/store"
)

// BillingService is the slice of the billing service the API uses.
type BillingService interface {
	Sync(ctx context.Context) (billing.SyncResult, error)
	Get(ctx context.Context, id string) (store.Invoice, error)
	List(ctx context.Context, filter store.InvoiceFilter) ([]store.Invoice, error)
	GetPDF(ctx context.Context, id string) (string, error)
}

type invoiceResponse struct {
	ID             string    `json:"id"`
	SubscriberID   string    `json:"subscriber_id"`
	SubscriberName string    `json:"subscriber_name"`
	Period         string    `json:"period"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	IssuedAt       time.Time `json:"issued_at"`
	DueAt          time.Time `json:"due_at"`
	PDFURI         *string   `json:"pdf_uri,omitempty"`
}

func toInvoiceResponse(inv store.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		SubscriberID:   inv.SubscriberID,
		SubscriberName: inv.SubscriberName,
		Period:         inv.Period,
		AmountCents:    inv.AmountCents,
		Currency:       inv.Currency,
		Status:         string(inv.Status),
		IssuedAt:       inv.IssuedAt,
		DueAt:          inv.DueAt,
		PDFURI:         inv.PDFURI,
	}
}

func (s *Server) syncInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Billing.Sync(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	filter := store.InvoiceFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := store.InvoiceStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("period"); raw != "" {
		period := raw
		filter.Period = &period
	}
	invoices, err := s.svc.Billing.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Billing.Get(r.Context(), chi.URLParam(r, "invoice_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (s *Server) getInvoicePDF(w http.ResponseWriter, r *http.Request) {
	uri, err := s.svc.Billing.GetPDF(r.Context(), chi.URLParam(r, "invoice_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pdf_uri": uri})
}
