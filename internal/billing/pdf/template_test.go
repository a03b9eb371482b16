package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

// TestBuildHTML renders the document with amounts in decimal notation
// and entity-escaped subscriber names.
func TestBuildHTML(t *testing.T) {
	t.Parallel()

	html, err := BuildHTML(store.Invoice{
		ID:             "INV-2026-0042",
		SubscriberID:   "sub-17",
		SubscriberName: "Brown & Co",
		Period:         "2026-08",
		AmountCents:    4990,
		Currency:       "USD",
		Status:         store.InvoiceOpen,
		IssuedAt:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DueAt:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Contains(t, html, "Invoice INV-2026-0042")
	require.Contains(t, html, "49.90 USD")
	require.Contains(t, html, "Brown &amp; Co")
	require.Contains(t, html, "2026-08-15")
}

// TestBuildHTMLPadsCents keeps sub-dollar amounts two digits wide.
func TestBuildHTMLPadsCents(t *testing.T) {
	t.Parallel()

	html, err := BuildHTML(store.Invoice{ID: "INV-1", AmountCents: 1205, Currency: "EUR"})
	require.NoError(t, err)
	require.Contains(t, html, "12.05 EUR")
}
