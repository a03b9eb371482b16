package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strataisp/console/internal/store"
)

// BillingStore implements store.BillingRepository.
type BillingStore struct {
	db DB
}

// NewBillingStore creates a new BillingStore on the shared pool.
func NewBillingStore(db DB) *BillingStore {
	return &BillingStore{db: db}
}

const invoiceColumns = `id, subscriber_id, subscriber_name, period, amount_cents,
	currency, status, issued_at, due_at, pdf_uri, synced_at`

// UpsertInvoices applies one sync page in a single transaction. Rendered
// PDF locations survive re-syncs; everything else follows the core.
func (s *BillingStore) UpsertInvoices(ctx context.Context, invoices []store.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin invoice sync: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10)
		ON CONFLICT (id) DO UPDATE SET
			subscriber_id = EXCLUDED.subscriber_id,
			subscriber_name = EXCLUDED.subscriber_name,
			period = EXCLUDED.period,
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			issued_at = EXCLUDED.issued_at,
			due_at = EXCLUDED.due_at,
			synced_at = EXCLUDED.synced_at;
	`
	for _, inv := range invoices {
		_, err := tx.Exec(ctx, query,
			inv.ID, inv.SubscriberID, inv.SubscriberName, inv.Period, inv.AmountCents,
			inv.Currency, inv.Status, inv.IssuedAt, inv.DueAt, inv.SyncedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert invoice %s: %w", inv.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit invoice sync: %w", err)
	}
	return nil
}

// GetInvoice retrieves a single invoice by its core ID.
func (s *BillingStore) GetInvoice(ctx context.Context, id string) (store.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1;`
	var inv store.Invoice
	err := s.db.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.SubscriberID, &inv.SubscriberName, &inv.Period, &inv.AmountCents,
		&inv.Currency, &inv.Status, &inv.IssuedAt, &inv.DueAt, &inv.PDFURI, &inv.SyncedAt,
	)
	if err != nil {
		return store.Invoice{}, notFound(err, "get invoice")
	}
	return inv, nil
}

// ListInvoices returns invoices filtered by optional status and period,
// newest issue date first.
func (s *BillingStore) ListInvoices(ctx context.Context, filter store.InvoiceFilter) ([]store.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::text IS NULL OR period = $2)
		ORDER BY issued_at DESC
		LIMIT $3 OFFSET $4;
	`
	rows, err := s.db.Query(ctx, query, filter.Status, filter.Period, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []store.Invoice
	for rows.Next() {
		var inv store.Invoice
		err := rows.Scan(
			&inv.ID, &inv.SubscriberID, &inv.SubscriberName, &inv.Period, &inv.AmountCents,
			&inv.Currency, &inv.Status, &inv.IssuedAt, &inv.DueAt, &inv.PDFURI, &inv.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// SetInvoicePDF records the blob location of the rendered PDF.
func (s *BillingStore) SetInvoicePDF(ctx context.Context, id, uri string) error {
	res, err := s.db.Exec(ctx, `UPDATE invoices SET pdf_uri = $2 WHERE id = $1;`, id, uri)
	if err != nil {
		return fmt.Errorf("set invoice pdf: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetSyncCursor returns the high-water mark of the last sync; zero time
// when no sync has run yet.
func (s *BillingStore) GetSyncCursor(ctx context.Context) (time.Time, error) {
	var cursor time.Time
	err := s.db.QueryRow(ctx, `SELECT cursor FROM billing_sync WHERE singleton;`).Scan(&cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get sync cursor: %w", err)
	}
	return cursor, nil
}

// SetSyncCursor stores the high-water mark.
func (s *BillingStore) SetSyncCursor(ctx context.Context, cursor time.Time) error {
	query := `
		INSERT INTO billing_sync (singleton, cursor) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET cursor = EXCLUDED.cursor;
	`
	if _, err := s.db.Exec(ctx, query, cursor); err != nil {
		return fmt.Errorf("set sync cursor: %w", err)
	}
	return nil
}
