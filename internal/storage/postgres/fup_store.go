package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/store"
)

// FUPStore implements store.FUPRepository.
type FUPStore struct {
	db DB
}

// NewFUPStore creates a new FUPStore on the shared pool.
func NewFUPStore(db DB) *FUPStore {
	return &FUPStore{db: db}
}

const fupColumns = `id, name, quota_mb, cycle, action_on_exceed,
	throttle_rate_kbps, notify_template_id, enabled, created_at, updated_at`

// CreateProfile inserts a new fair-usage profile.
func (s *FUPStore) CreateProfile(ctx context.Context, p store.FUPProfile) error {
	query := `
		INSERT INTO fup_profiles (` + fupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.Name, p.QuotaMB, p.Cycle, p.ActionOnExceed,
		p.ThrottleRateKbps, p.NotifyTemplateID, p.Enabled, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: profile name %q already exists", store.ErrConflict, p.Name)
		}
		return fmt.Errorf("insert fup profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a single profile by its ID.
func (s *FUPStore) GetProfile(ctx context.Context, id uuid.UUID) (store.FUPProfile, error) {
	query := `SELECT ` + fupColumns + ` FROM fup_profiles WHERE id = $1;`
	var p store.FUPProfile
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.QuotaMB, &p.Cycle, &p.ActionOnExceed,
		&p.ThrottleRateKbps, &p.NotifyTemplateID, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return store.FUPProfile{}, notFound(err, "get fup profile")
	}
	return p, nil
}

// ListProfiles returns profiles, optionally only enabled ones.
func (s *FUPStore) ListProfiles(ctx context.Context, enabledOnly bool) ([]store.FUPProfile, error) {
	query := `
		SELECT ` + fupColumns + ` FROM fup_profiles
		WHERE ($1 = FALSE OR enabled)
		ORDER BY name;
	`
	rows, err := s.db.Query(ctx, query, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list fup profiles: %w", err)
	}
	defer rows.Close()

	var profiles []store.FUPProfile
	for rows.Next() {
		var p store.FUPProfile
		err := rows.Scan(
			&p.ID, &p.Name, &p.QuotaMB, &p.Cycle, &p.ActionOnExceed,
			&p.ThrottleRateKbps, &p.NotifyTemplateID, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fup profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile replaces every mutable column of the profile.
func (s *FUPStore) UpdateProfile(ctx context.Context, p store.FUPProfile) error {
	query := `
		UPDATE fup_profiles
		SET name = $2, quota_mb = $3, cycle = $4, action_on_exceed = $5,
			throttle_rate_kbps = $6, notify_template_id = $7, enabled = $8,
			updated_at = $9
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query,
		p.ID, p.Name, p.QuotaMB, p.Cycle, p.ActionOnExceed,
		p.ThrottleRateKbps, p.NotifyTemplateID, p.Enabled, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: profile name %q already exists", store.ErrConflict, p.Name)
		}
		return fmt.Errorf("update fup profile: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteProfile removes the profile.
func (s *FUPStore) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, `DELETE FROM fup_profiles WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete fup profile: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
