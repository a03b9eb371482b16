package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRule shapes subscriber bandwidth by time of day. DayMask is a
// seven-bit field, bit 0 = Monday through bit 6 = Sunday. Minutes count
// from midnight; a rule whose end is before its start wraps past it.
type ScheduleRule struct {
	ID           uuid.UUID
	Name         string
	DayMask      int
	StartMinute  int
	EndMinute    int
	RateDownKbps int
	RateUpKbps   int
	TargetGroup  string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleRepository persists bandwidth schedule rules.
type ScheduleRepository interface {
	CreateRule(ctx context.Context, rule ScheduleRule) error
	GetRule(ctx context.Context, id uuid.UUID) (ScheduleRule, error)
	ListRules(ctx context.Context) ([]ScheduleRule, error)
	UpdateRule(ctx context.Context, rule ScheduleRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	// SetRuleEnabled flips the enabled flag and returns the updated rule.
	SetRuleEnabled(ctx context.Context, id uuid.UUID, enabled bool, at time.Time) (ScheduleRule, error)
}
