// Package schedule manages bandwidth scheduling rules and pushes the
// enabled set to the platform core whenever it changes.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/store"
)

// RulePusher replaces the core's bandwidth schedule with the given rules.
type RulePusher interface {
	PushScheduleRules(ctx context.Context, rules []store.ScheduleRule) error
}

// RuleInput carries the mutable fields of a schedule rule.
type RuleInput struct {
	Name         string
	DayMask      int
	StartMinute  int
	EndMinute    int
	RateDownKbps int
	RateUpKbps   int
	TargetGroup  string
	Enabled      bool
}

// Service owns schedule rule CRUD and the best-effort core push.
type Service struct {
	repo   store.ScheduleRepository
	pusher RulePusher
	ids    id.UUIDGenerator
	clock  clock.Clock
	logger *zap.Logger
}

// Config wires the schedule service.
type Config struct {
	Repo   store.ScheduleRepository
	Pusher RulePusher
	IDs    id.UUIDGenerator
	Clock  clock.Clock
	Logger *zap.Logger
}

// New builds the schedule service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   cfg.Repo,
		pusher: cfg.Pusher,
		ids:    cfg.IDs,
		clock:  cfg.Clock,
		logger: logger,
	}
}

const minutesPerDay = 24 * 60

// validate enforces the rule invariants: minutes within the day,
// distinct start and end, a day mask selecting at least one day, and
// non-negative rates.
func validate(in RuleInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", store.ErrInvalid)
	}
	if in.DayMask < 1 || in.DayMask > 127 {
		return fmt.Errorf("%w: day_mask must be between 1 and 127", store.ErrInvalid)
	}
	if in.StartMinute < 0 || in.StartMinute >= minutesPerDay {
		return fmt.Errorf("%w: start_minute must be in [0, 1440)", store.ErrInvalid)
	}
	if in.EndMinute < 0 || in.EndMinute >= minutesPerDay {
		return fmt.Errorf("%w: end_minute must be in [0, 1440)", store.ErrInvalid)
	}
	if in.StartMinute == in.EndMinute {
		return fmt.Errorf("%w: start_minute and end_minute must differ", store.ErrInvalid)
	}
	if in.RateDownKbps < 0 || in.RateUpKbps < 0 {
		return fmt.Errorf("%w: rates must be >= 0", store.ErrInvalid)
	}
	return nil
}

// Create validates and stores a new rule, then pushes the updated set.
func (s *Service) Create(ctx context.Context, in RuleInput) (store.ScheduleRule, error) {
	if err := validate(in); err != nil {
		return store.ScheduleRule{}, err
	}
	ruleID, err := s.ids.NewUUID()
	if err != nil {
		return store.ScheduleRule{}, fmt.Errorf("mint rule id: %w", err)
	}
	now := s.clock.Now()
	rule := store.ScheduleRule{
		ID:           ruleID,
		Name:         in.Name,
		DayMask:      in.DayMask,
		StartMinute:  in.StartMinute,
		EndMinute:    in.EndMinute,
		RateDownKbps: in.RateDownKbps,
		RateUpKbps:   in.RateUpKbps,
		TargetGroup:  in.TargetGroup,
		Enabled:      in.Enabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return store.ScheduleRule{}, err
	}
	s.pushRules(ctx)
	return rule, nil
}

// Get loads one rule.
func (s *Service) Get(ctx context.Context, ruleID uuid.UUID) (store.ScheduleRule, error) {
	return s.repo.GetRule(ctx, ruleID)
}

// List returns every rule ordered by name.
func (s *Service) List(ctx context.Context) ([]store.ScheduleRule, error) {
	return s.repo.ListRules(ctx)
}

// Update validates and replaces a rule's mutable fields, then pushes the
// updated set.
func (s *Service) Update(ctx context.Context, ruleID uuid.UUID, in RuleInput) (store.ScheduleRule, error) {
	if err := validate(in); err != nil {
		return store.ScheduleRule{}, err
	}
	existing, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return store.ScheduleRule{}, err
	}
	rule := existing
	rule.Name = in.Name
	rule.DayMask = in.DayMask
	rule.StartMinute = in.StartMinute
	rule.EndMinute = in.EndMinute
	rule.RateDownKbps = in.RateDownKbps
	rule.RateUpKbps = in.RateUpKbps
	rule.TargetGroup = in.TargetGroup
	rule.Enabled = in.Enabled
	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return store.ScheduleRule{}, err
	}
	s.pushRules(ctx)
	return rule, nil
}

// Delete removes a rule and pushes the updated set.
func (s *Service) Delete(ctx context.Context, ruleID uuid.UUID) error {
	if err := s.repo.DeleteRule(ctx, ruleID); err != nil {
		return err
	}
	s.pushRules(ctx)
	return nil
}

// Toggle flips the enabled flag and pushes the updated set.
func (s *Service) Toggle(ctx context.Context, ruleID uuid.UUID, enabled bool) (store.ScheduleRule, error) {
	rule, err := s.repo.SetRuleEnabled(ctx, ruleID, enabled, s.clock.Now())
	if err != nil {
		return store.ScheduleRule{}, err
	}
	s.pushRules(ctx)
	return rule, nil
}

// pushRules sends the currently enabled rules to the core. Failures are
// logged, never surfaced: the console's stored rules stay authoritative
// and the next mutation retries the push.
func (s *Service) pushRules(ctx context.Context) {
	if s.pusher == nil {
		return
	}
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		s.logger.Warn("skipping schedule push, list failed", zap.Error(err))
		return
	}
	enabled := make([]store.ScheduleRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.pusher.PushScheduleRules(pushCtx, enabled); err != nil {
		s.logger.Warn("schedule push failed", zap.Int("rules", len(enabled)), zap.Error(err))
	}
}
