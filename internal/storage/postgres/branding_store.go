package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/strataisp/console/internal/store"
)

// BrandingStore implements store.BrandingRepository.
type BrandingStore struct {
	db DB
}

// NewBrandingStore creates a new BrandingStore on the shared pool.
func NewBrandingStore(db DB) *BrandingStore {
	return &BrandingStore{db: db}
}

// UpsertBranding inserts or replaces the reseller's record. Changing the
// custom domain clears any previous verification.
func (s *BrandingStore) UpsertBranding(ctx context.Context, b store.Branding) error {
	query := `
		INSERT INTO branding (reseller_id, display_name, logo_uri, primary_color,
			support_phone, custom_domain, domain_token, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reseller_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			logo_uri = EXCLUDED.logo_uri,
			primary_color = EXCLUDED.primary_color,
			support_phone = EXCLUDED.support_phone,
			custom_domain = EXCLUDED.custom_domain,
			domain_token = EXCLUDED.domain_token,
			domain_verified_at = CASE
				WHEN branding.custom_domain IS DISTINCT FROM EXCLUDED.custom_domain THEN NULL
				ELSE branding.domain_verified_at
			END,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := s.db.Exec(ctx, query,
		b.ResellerID, b.DisplayName, b.LogoURI, b.PrimaryColor,
		b.SupportPhone, b.CustomDomain, b.DomainToken, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert branding: %w", err)
	}
	return nil
}

// GetBranding retrieves the reseller's record.
func (s *BrandingStore) GetBranding(ctx context.Context, resellerID string) (store.Branding, error) {
	query := `
		SELECT reseller_id, display_name, logo_uri, primary_color, support_phone,
			custom_domain, domain_token, domain_verified_at, updated_at
		FROM branding WHERE reseller_id = $1;
	`
	var b store.Branding
	err := s.db.QueryRow(ctx, query, resellerID).Scan(
		&b.ResellerID, &b.DisplayName, &b.LogoURI, &b.PrimaryColor, &b.SupportPhone,
		&b.CustomDomain, &b.DomainToken, &b.DomainVerifiedAt, &b.UpdatedAt,
	)
	if err != nil {
		return store.Branding{}, notFound(err, "get branding")
	}
	return b, nil
}

// SetLogoURI records the blob location of the uploaded logo.
func (s *BrandingStore) SetLogoURI(ctx context.Context, resellerID, uri string, at time.Time) error {
	query := `UPDATE branding SET logo_uri = $2, updated_at = $3 WHERE reseller_id = $1;`
	res, err := s.db.Exec(ctx, query, resellerID, uri, at)
	if err != nil {
		return fmt.Errorf("set branding logo: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetDomainToken stores a fresh DNS challenge token and clears any
// previous verification.
func (s *BrandingStore) SetDomainToken(ctx context.Context, resellerID, token string, at time.Time) error {
	query := `
		UPDATE branding
		SET domain_token = $2, domain_verified_at = NULL, updated_at = $3
		WHERE reseller_id = $1;
	`
	res, err := s.db.Exec(ctx, query, resellerID, token, at)
	if err != nil {
		return fmt.Errorf("set domain token: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkDomainVerified records a passed DNS challenge.
func (s *BrandingStore) MarkDomainVerified(ctx context.Context, resellerID string, at time.Time) error {
	query := `UPDATE branding SET domain_verified_at = $2, updated_at = $2 WHERE reseller_id = $1;`
	res, err := s.db.Exec(ctx, query, resellerID, at)
	if err != nil {
		return fmt.Errorf("mark domain verified: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
