package platform

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/strataisp/console/internal/store"
)

type invoiceDTO struct {
	ID             string    `json:"id"`
	SubscriberID   string    `json:"subscriber_id"`
	SubscriberName string    `json:"subscriber_name"`
	Period         string    `json:"period"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	IssuedAt       time.Time `json:"issued_at"`
	DueAt          time.Time `json:"due_at"`
	ChangedAt      time.Time `json:"changed_at"`
}

// InvoicesSince returns one page of invoices changed after the cursor,
// oldest change first. The caller advances the cursor to the last
// invoice's SyncedAt and calls again until the page comes back short.
func (c *Client) InvoicesSince(ctx context.Context, since time.Time, limit int) ([]store.Invoice, error) {
	query := url.Values{
		"since": {since.UTC().Format(time.RFC3339Nano)},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	var wire struct {
		Invoices []invoiceDTO `json:"invoices"`
	}
	if err := c.get(ctx, "/api/internal/invoices/changed?"+query.Encode(), &wire); err != nil {
		return nil, err
	}

	invoices := make([]store.Invoice, 0, len(wire.Invoices))
	for _, dto := range wire.Invoices {
		invoices = append(invoices, store.Invoice{
			ID:             dto.ID,
			SubscriberID:   dto.SubscriberID,
			SubscriberName: dto.SubscriberName,
			Period:         dto.Period,
			AmountCents:    dto.AmountCents,
			Currency:       dto.Currency,
			Status:         store.InvoiceStatus(dto.Status),
			IssuedAt:       dto.IssuedAt,
			DueAt:          dto.DueAt,
			SyncedAt:       dto.ChangedAt,
		})
	}
	return invoices, nil
}
