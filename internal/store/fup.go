package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FUPCycle is the quota accounting window.
type FUPCycle string

// Quota cycles.
const (
	CycleDaily   FUPCycle = "daily"
	CycleWeekly  FUPCycle = "weekly"
	CycleMonthly FUPCycle = "monthly"
)

// FUPAction is what happens to a subscriber who exceeds the quota.
type FUPAction string

// Exceed actions.
const (
	ActionThrottle FUPAction = "throttle"
	ActionBlock    FUPAction = "block"
	ActionNotify   FUPAction = "notify"
)

// FUPProfile is a fair-usage quota profile. ThrottleRateKbps applies only
// when the action is throttle; NotifyTemplateID only when it is notify.
type FUPProfile struct {
	ID               uuid.UUID
	Name             string
	QuotaMB          int64
	Cycle            FUPCycle
	ActionOnExceed   FUPAction
	ThrottleRateKbps int
	NotifyTemplateID *uuid.UUID
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FUPRepository persists fair-usage profiles.
type FUPRepository interface {
	CreateProfile(ctx context.Context, profile FUPProfile) error
	GetProfile(ctx context.Context, id uuid.UUID) (FUPProfile, error)
	ListProfiles(ctx context.Context, enabledOnly bool) ([]FUPProfile, error)
	UpdateProfile(ctx context.Context, profile FUPProfile) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}
