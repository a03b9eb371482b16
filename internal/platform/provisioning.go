package platform

import (
	"context"
	"time"

	"github.com/strataisp/console/internal/store"
)

// Redemption tells the core a prepaid card was applied to a subscriber.
type Redemption struct {
	SubscriberID string    `json:"subscriber_id"`
	PlanID       string    `json:"plan_id"`
	ValidityDays int       `json:"validity_days"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

// NotifyRedemption reports a card redemption so the core extends the
// subscriber's plan.
func (c *Client) NotifyRedemption(ctx context.Context, r Redemption) error {
	return c.post(ctx, "/api/internal/redemptions", r, nil)
}

type scheduleRuleDTO struct {
	Name         string `json:"name"`
	DayMask      int    `json:"day_mask"`
	StartMinute  int    `json:"start_minute"`
	EndMinute    int    `json:"end_minute"`
	RateDownKbps int    `json:"rate_down_kbps"`
	RateUpKbps   int    `json:"rate_up_kbps"`
	TargetGroup  string `json:"target_group"`
}

// PushScheduleRules replaces the core's bandwidth schedule with the given
// enabled rules. Callers treat failures as best-effort and log them; the
// console's stored rules stay authoritative.
func (c *Client) PushScheduleRules(ctx context.Context, rules []store.ScheduleRule) error {
	dtos := make([]scheduleRuleDTO, 0, len(rules))
	for _, r := range rules {
		dtos = append(dtos, scheduleRuleDTO{
			Name:         r.Name,
			DayMask:      r.DayMask,
			StartMinute:  r.StartMinute,
			EndMinute:    r.EndMinute,
			RateDownKbps: r.RateDownKbps,
			RateUpKbps:   r.RateUpKbps,
			TargetGroup:  r.TargetGroup,
		})
	}
	in := struct {
		Rules []scheduleRuleDTO `json:"rules"`
	}{Rules: dtos}
	return c.post(ctx, "/api/internal/schedule/rules", in, nil)
}
