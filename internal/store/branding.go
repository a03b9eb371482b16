package store

import (
	"context"
	"time"
)

// Branding is the per-reseller white-label record. DomainToken is the DNS
// challenge value a reseller must publish before their custom domain
// verifies; DomainVerifiedAt is nil until the challenge passes.
type Branding struct {
	ResellerID       string
	DisplayName      string
	LogoURI          string
	PrimaryColor     string
	SupportPhone     string
	CustomDomain     string
	DomainToken      string
	DomainVerifiedAt *time.Time
	UpdatedAt        time.Time
}

// BrandingRepository persists reseller branding records.
type BrandingRepository interface {
	// UpsertBranding inserts or replaces the reseller's record. Changing
	// the custom domain clears any previous verification.
	UpsertBranding(ctx context.Context, b Branding) error
	GetBranding(ctx context.Context, resellerID string) (Branding, error)
	SetLogoURI(ctx context.Context, resellerID, uri string, at time.Time) error
	SetDomainToken(ctx context.Context, resellerID, token string, at time.Time) error
	MarkDomainVerified(ctx context.Context, resellerID string, at time.Time) error
}
