package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/store"
)

// ScheduleStore implements store.ScheduleRepository.
type ScheduleStore struct {
	db DB
}

// NewScheduleStore creates a new ScheduleStore on the shared pool.
func NewScheduleStore(db DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleColumns = `id, name, day_mask, start_minute, end_minute,
	rate_down_kbps, rate_up_kbps, target_group, enabled, created_at, updated_at`

// CreateRule inserts a new schedule rule.
func (s *ScheduleStore) CreateRule(ctx context.Context, rule store.ScheduleRule) error {
	query := `
		INSERT INTO schedule_rules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := s.db.Exec(ctx, query,
		rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
		rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rule name %q already exists", store.ErrConflict, rule.Name)
		}
		return fmt.Errorf("insert schedule rule: %w", err)
	}
	return nil
}

// GetRule retrieves a single rule by its ID.
func (s *ScheduleStore) GetRule(ctx context.Context, id uuid.UUID) (store.ScheduleRule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_rules WHERE id = $1;`
	var rule store.ScheduleRule
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rule.ID, &rule.Name, &rule.DayMask, &rule.StartMinute, &rule.EndMinute,
		&rule.RateDownKbps, &rule.RateUpKbps, &rule.TargetGroup, &rule.Enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return store.ScheduleRule{}, notFound(err, "get schedule rule")
	}
	return rule, nil
}

// ListRules returns all rules ordered by name.
func (s *ScheduleStore) ListRules(ctx context.Context) ([]store.ScheduleRule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_rules ORDER BY name;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedule rules: %w", err)
	}
	defer rows.Close()

	var rules []store.ScheduleRule
	for rows.Next() {
		var rule store.ScheduleRule
		err := rows.Scan(
			&rule.ID, &rule.Name, &rule.DayMask, &rule.StartMinute, &rule.EndMinute,
			&rule.RateDownKbps, &rule.RateUpKbps, &rule.TargetGroup, &rule.Enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpdateRule replaces every mutable column of the rule.
func (s *ScheduleStore) UpdateRule(ctx context.Context, rule store.ScheduleRule) error {
	query := `
		UPDATE schedule_rules
		SET name = $2, day_mask = $3, start_minute = $4, end_minute = $5,
			rate_down_kbps = $6, rate_up_kbps = $7, target_group = $8,
			enabled = $9, updated_at = $10
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query,
		rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
		rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
		rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rule name %q already exists", store.ErrConflict, rule.Name)
		}
		return fmt.Errorf("update schedule rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteRule removes the rule.
func (s *ScheduleStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, `DELETE FROM schedule_rules WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete schedule rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetRuleEnabled flips the enabled flag and returns the updated rule.
func (s *ScheduleStore) SetRuleEnabled(ctx context.Context, id uuid.UUID, enabled bool, at time.Time) (store.ScheduleRule, error) {
	query := `
		UPDATE schedule_rules
		SET enabled = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + scheduleColumns + `;
	`
	var rule store.ScheduleRule
	err := s.db.QueryRow(ctx, query, id, enabled, at).Scan(
		&rule.ID, &rule.Name, &rule.DayMask, &rule.StartMinute, &rule.EndMinute,
		&rule.RateDownKbps, &rule.RateUpKbps, &rule.TargetGroup, &rule.Enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return store.ScheduleRule{}, notFound(err, "toggle schedule rule")
	}
	return rule, nil
}
