package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

func TestUpsertInvoicesRunsInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	invoices := []store.Invoice{
		{
			ID: "inv-1001", SubscriberID: "sub-1", SubscriberName: "Dana Osei",
			Period: "2024-07", AmountCents: 4500, Currency: "USD",
			Status: store.InvoiceOpen, IssuedAt: now, DueAt: now.AddDate(0, 0, 14), SyncedAt: now,
		},
		{
			ID: "inv-1002", SubscriberID: "sub-2", SubscriberName: "Femi Ade",
			Period: "2024-07", AmountCents: 9900, Currency: "USD",
			Status: store.InvoicePaid, IssuedAt: now, DueAt: now.AddDate(0, 0, 14), SyncedAt: now,
		},
	}

	mock.ExpectBegin()
	for _, inv := range invoices {
		mock.ExpectExec("INSERT INTO invoices").
			WithArgs(inv.ID, inv.SubscriberID, inv.SubscriberName, inv.Period, inv.AmountCents,
				inv.Currency, inv.Status, inv.IssuedAt, inv.DueAt, inv.SyncedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err = NewBillingStore(mock).UpsertInvoices(context.Background(), invoices)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertInvoicesEmptyPageIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = NewBillingStore(mock).UpsertInvoices(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncCursorZeroWhenUnset(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT cursor FROM billing_sync").
		WillReturnError(pgx.ErrNoRows)

	cursor, err := NewBillingStore(mock).GetSyncCursor(context.Background())
	require.NoError(t, err)
	require.True(t, cursor.IsZero())
}

func TestSetInvoicePDFMissingInvoice(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE invoices").
		WithArgs("inv-404", "gs://invoices/inv-404.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewBillingStore(mock).SetInvoicePDF(context.Background(), "inv-404", "gs://invoices/inv-404.pdf")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListInvoicesAppliesFilters(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	status := store.InvoiceOverdue
	period := "2024-07"
	mock.ExpectQuery("SELECT id, subscriber_id, subscriber_name").
		WithArgs(&status, &period, 25, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "subscriber_id", "subscriber_name", "period", "amount_cents",
			"currency", "status", "issued_at", "due_at", "pdf_uri", "synced_at",
		}).AddRow("inv-900", "sub-9", "Imani Park", "2024-07", int64(4500),
			"USD", store.InvoiceOverdue, now, now.AddDate(0, 0, -3), (*string)(nil), now))

	invoices, err := NewBillingStore(mock).ListInvoices(context.Background(), store.InvoiceFilter{
		Status: &status, Period: &period, Limit: 25, Offset: 0,
	})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "inv-900", invoices[0].ID)
	require.Nil(t, invoices[0].PDFURI)
}
