// Package fup manages fair-usage quota profiles.
package fup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/store"
)

// ProfileInput carries the mutable fields of a quota profile.
type ProfileInput struct {
	Name             string
	QuotaMB          int64
	Cycle            store.FUPCycle
	ActionOnExceed   store.FUPAction
	ThrottleRateKbps int
	NotifyTemplateID *uuid.UUID
	Enabled          bool
}

// Service owns FUP profile CRUD.
type Service struct {
	repo  store.FUPRepository
	ids   id.UUIDGenerator
	clock clock.Clock
}

// New builds the FUP service.
func New(repo store.FUPRepository, ids id.UUIDGenerator, clk clock.Clock) *Service {
	return &Service{repo: repo, ids: ids, clock: clk}
}

// validate enforces the action guards: throttling needs a positive rate,
// notifying needs a template.
func validate(in ProfileInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", store.ErrInvalid)
	}
	if in.QuotaMB <= 0 {
		return fmt.Errorf("%w: quota_mb must be > 0", store.ErrInvalid)
	}
	switch in.Cycle {
	case store.CycleDaily, store.CycleWeekly, store.CycleMonthly:
	default:
		return fmt.Errorf("%w: unknown cycle %q", store.ErrInvalid, in.Cycle)
	}
	switch in.ActionOnExceed {
	case store.ActionThrottle:
		if in.ThrottleRateKbps <= 0 {
			return fmt.Errorf("%w: throttle action requires a positive throttle_rate_kbps", store.ErrInvalid)
		}
	case store.ActionBlock:
	case store.ActionNotify:
		if in.NotifyTemplateID == nil {
			return fmt.Errorf("%w: notify action requires a notify_template_id", store.ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", store.ErrInvalid, in.ActionOnExceed)
	}
	return nil
}

// Create validates and stores a new profile.
func (s *Service) Create(ctx context.Context, in ProfileInput) (store.FUPProfile, error) {
	if err := validate(in); err != nil {
		return store.FUPProfile{}, err
	}
	profileID, err := s.ids.NewUUID()
	if err != nil {
		return store.FUPProfile{}, fmt.Errorf("mint profile id: %w", err)
	}
	now := s.clock.Now()
	profile := store.FUPProfile{
		ID:               profileID,
		Name:             in.Name,
		QuotaMB:          in.QuotaMB,
		Cycle:            in.Cycle,
		ActionOnExceed:   in.ActionOnExceed,
		ThrottleRateKbps: in.ThrottleRateKbps,
		NotifyTemplateID: in.NotifyTemplateID,
		Enabled:          in.Enabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return store.FUPProfile{}, err
	}
	return profile, nil
}

// Get loads one profile.
func (s *Service) Get(ctx context.Context, profileID uuid.UUID) (store.FUPProfile, error) {
	return s.repo.GetProfile(ctx, profileID)
}

// List returns profiles, optionally only enabled ones.
func (s *Service) List(ctx context.Context, enabledOnly bool) ([]store.FUPProfile, error) {
	return s.repo.ListProfiles(ctx, enabledOnly)
}

// Update validates and replaces a profile's mutable fields.
func (s *Service) Update(ctx context.Context, profileID uuid.UUID, in ProfileInput) (store.FUPProfile, error) {
	if err := validate(in); err != nil {
		return store.FUPProfile{}, err
	}
	existing, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return store.FUPProfile{}, err
	}
	profile := existing
	profile.Name = in.Name
	profile.QuotaMB = in.QuotaMB
	profile.Cycle = in.Cycle
	profile.ActionOnExceed = in.ActionOnExceed
	profile.ThrottleRateKbps = in.ThrottleRateKbps
	profile.NotifyTemplateID = in.NotifyTemplateID
	profile.Enabled = in.Enabled
	profile.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return store.FUPProfile{}, err
	}
	return profile, nil
}

// Delete removes a profile.
func (s *Service) Delete(ctx context.Context, profileID uuid.UUID) error {
	return s.repo.DeleteProfile(ctx, profileID)
}
