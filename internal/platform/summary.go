package platform

import "context"

// SubscriberTotals is the subscriber count broken down by status.
type SubscriberTotals struct {
	Active    int `json:"active"`
	Suspended int `json:"suspended"`
	Expired   int `json:"expired"`
}

// InvoiceTotals summarizes unsettled invoices.
type InvoiceTotals struct {
	OpenCount       int   `json:"open_count"`
	OpenAmountCents int64 `json:"open_amount_cents"`
	OverdueCount    int   `json:"overdue_count"`
}

// TrafficTotals is today's transferred volume across all subscribers.
type TrafficTotals struct {
	DownMB int64 `json:"down_mb"`
	UpMB   int64 `json:"up_mb"`
}

// SubscriberTotals reads the per-status subscriber counts.
func (c *Client) SubscriberTotals(ctx context.Context) (SubscriberTotals, error) {
	var totals SubscriberTotals
	err := c.get(ctx, "/api/internal/summary/subscribers", &totals)
	return totals, err
}

// InvoiceTotals reads the open invoice summary.
func (c *Client) InvoiceTotals(ctx context.Context) (InvoiceTotals, error) {
	var totals InvoiceTotals
	err := c.get(ctx, "/api/internal/summary/invoices", &totals)
	return totals, err
}

// TrafficToday reads today's traffic volume.
func (c *Client) TrafficToday(ctx context.Context) (TrafficTotals, error) {
	var totals TrafficTotals
	err := c.get(ctx, "/api/internal/summary/traffic", &totals)
	return totals, err
}

// ActiveSessionCount reads the number of online subscriber sessions.
func (c *Client) ActiveSessionCount(ctx context.Context) (int, error) {
	var wire struct {
		Count int `json:"count"`
	}
	err := c.get(ctx, "/api/internal/sessions/count", &wire)
	return wire.Count, err
}
