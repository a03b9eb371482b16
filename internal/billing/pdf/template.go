package pdf

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/strataisp/console/internal/store"
)

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 48px; }
  h1 { font-size: 22px; margin-bottom: 0; }
  .muted { color: #6a6a6a; font-size: 12px; }
  table { width: 100%; border-collapse: collapse; margin-top: 32px; }
  td, th { padding: 8px 4px; text-align: left; border-bottom: 1px solid #ddd; font-size: 13px; }
  .amount { font-size: 18px; font-weight: bold; text-align: right; }
  .status { text-transform: uppercase; letter-spacing: 1px; font-size: 11px; }
</style>
</head>
<body>
  <h1>Invoice {{.ID}}</h1>
  <p class="muted">Billing period {{.Period}} &middot; <span class="status">{{.Status}}</span></p>
  <table>
    <tr><th>Subscriber</th><td>{{.SubscriberName}}</td></tr>
    <tr><th>Subscriber ID</th><td>{{.SubscriberID}}</td></tr>
    <tr><th>Issued</th><td>{{.IssuedAt.Format "2006-01-02"}}</td></tr>
    <tr><th>Due</th><td>{{.DueAt.Format "2006-01-02"}}</td></tr>
    <tr><th>Amount</th><td class="amount">{{.Amount}} {{.Currency}}</td></tr>
  </table>
</body>
</html>`))

type invoiceView struct {
	store.Invoice
	Amount string
}

// BuildHTML renders the invoice document the PDF print runs against.
func BuildHTML(inv store.Invoice) (string, error) {
	view := invoiceView{
		Invoice: inv,
		Amount:  fmt.Sprintf("%d.%02d", inv.AmountCents/100, inv.AmountCents%100),
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render invoice template: %w", err)
	}
	return buf.String(), nil
}
