package store

import (
	"context"
	"time"
)

// InvoiceStatus mirrors the platform core's invoice states.
type InvoiceStatus string

// Invoice statuses.
const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is the console's read-model of a core-mastered invoice. IDs come
// from the core; Period is the billing month ("2026-08"); amounts are
// integer cents. PDFURI is set after the first render.
type Invoice struct {
	ID             string
	SubscriberID   string
	SubscriberName string
	Period         string
	AmountCents    int64
	Currency       string
	Status         InvoiceStatus
	IssuedAt       time.Time
	DueAt          time.Time
	PDFURI         *string
	SyncedAt       time.Time
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status *InvoiceStatus
	Period *string
	Limit  int
	Offset int
}

// BillingRepository persists the invoice read-model.
type BillingRepository interface {
	// UpsertInvoices applies one sync page, replacing changed rows.
	UpsertInvoices(ctx context.Context, invoices []Invoice) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	SetInvoicePDF(ctx context.Context, id, uri string) error

	// GetSyncCursor returns the high-water mark of the last sync; zero
	// time when no sync has run.
	GetSyncCursor(ctx context.Context) (time.Time, error)
	SetSyncCursor(ctx context.Context, cursor time.Time) error
}
