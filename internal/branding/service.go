// Package branding manages reseller white-label records: logo storage,
// custom domain verification over DNS, and issuer SSL status.
package branding

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/storage"
	"github.com/strataisp/console/internal/store"
)

// challengeLabel prefixes the TXT record a reseller publishes to prove
// domain ownership.
const challengeLabel = "_strata-verify."

var (
	colorPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)
)

// logoTypes maps accepted upload content types to stored extensions.
var logoTypes = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/svg+xml": "svg",
}

// Input carries the mutable branding fields.
type Input struct {
	ResellerID   string
	DisplayName  string
	PrimaryColor string
	SupportPhone string
	CustomDomain string
}

// VerifyResult reports one domain verification attempt.
type VerifyResult struct {
	Verified   bool   `json:"verified"`
	TXTMatched bool   `json:"txt_matched"`
	CNAMEMatch bool   `json:"cname_matched"`
	Detail     string `json:"detail,omitempty"`
}

// Config wires the branding service.
type Config struct {
	Repo         store.BrandingRepository
	Blobs        storage.BlobStore
	Resolver     Resolver
	Issuer       Issuer
	Clock        clock.Clock
	EdgeHost     string
	MaxLogoBytes int64
	Logger       *zap.Logger
}

// Service owns reseller branding.
type Service struct {
	repo         store.BrandingRepository
	blobs        storage.BlobStore
	resolver     Resolver
	issuer       Issuer
	clock        clock.Clock
	edgeHost     string
	maxLogoBytes int64
	logger       *zap.Logger
}

// New builds the branding service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxLogoBytes := cfg.MaxLogoBytes
	if maxLogoBytes <= 0 {
		maxLogoBytes = 1 << 20
	}
	return &Service{
		repo:         cfg.Repo,
		blobs:        cfg.Blobs,
		resolver:     cfg.Resolver,
		issuer:       cfg.Issuer,
		clock:        cfg.Clock,
		edgeHost:     cfg.EdgeHost,
		maxLogoBytes: maxLogoBytes,
		logger:       logger,
	}
}

// Get loads one reseller's branding.
func (s *Service) Get(ctx context.Context, resellerID string) (store.Branding, error) {
	return s.repo.GetBranding(ctx, resellerID)
}

// Upsert stores the branding record. A new or changed custom domain gets
// a fresh challenge token and loses any previous verification.
func (s *Service) Upsert(ctx context.Context, in Input) (store.Branding, error) {
	if err := validate(in); err != nil {
		return store.Branding{}, err
	}

	existing, err := s.repo.GetBranding(ctx, in.ResellerID)
	if err != nil && !isNotFound(err) {
		return store.Branding{}, err
	}

	b := existing
	b.ResellerID = in.ResellerID
	b.DisplayName = in.DisplayName
	b.PrimaryColor = in.PrimaryColor
	b.SupportPhone = in.SupportPhone
	b.UpdatedAt = s.clock.Now()

	if in.CustomDomain != existing.CustomDomain {
		b.CustomDomain = in.CustomDomain
		b.DomainVerifiedAt = nil
		b.DomainToken = ""
		if in.CustomDomain != "" {
			token, err := newToken()
			if err != nil {
				return store.Branding{}, err
			}
			b.DomainToken = token
		}
	}

	if err := s.repo.UpsertBranding(ctx, b); err != nil {
		return store.Branding{}, err
	}
	return b, nil
}

func validate(in Input) error {
	if in.ResellerID == "" {
		return fmt.Errorf("%w: reseller id is required", store.ErrInvalid)
	}
	if in.DisplayName == "" {
		return fmt.Errorf("%w: display name is required", store.ErrInvalid)
	}
	if in.PrimaryColor != "" && !colorPattern.MatchString(in.PrimaryColor) {
		return fmt.Errorf("%w: primary color must be #rrggbb", store.ErrInvalid)
	}
	if in.CustomDomain != "" && !domainPattern.MatchString(strings.ToLower(in.CustomDomain)) {
		return fmt.Errorf("%w: custom domain %q is not a valid hostname", store.ErrInvalid, in.CustomDomain)
	}
	return nil
}

// UploadLogo stores the logo in the blob store and records its URI.
func (s *Service) UploadLogo(ctx context.Context, resellerID, contentType string, size int64, data io.Reader) (string, error) {
	ext, ok := logoTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported logo type %q", store.ErrInvalid, contentType)
	}
	if size > s.maxLogoBytes {
		return "", fmt.Errorf("%w: logo exceeds %d bytes", store.ErrInvalid, s.maxLogoBytes)
	}
	if _, err := s.repo.GetBranding(ctx, resellerID); err != nil {
		return "", err
	}

	// LimitReader guards against a lying Content-Length.
	path := fmt.Sprintf("branding/%s/logo.%s", resellerID, ext)
	uri, err := s.blobs.PutObject(ctx, path, contentType, io.LimitReader(data, s.maxLogoBytes))
	if err != nil {
		return "", fmt.Errorf("store logo: %w", err)
	}
	if err := s.repo.SetLogoURI(ctx, resellerID, uri, s.clock.Now()); err != nil {
		return "", err
	}
	return uri, nil
}

// VerifyDomain runs the DNS challenge live: the TXT record must carry the
// stored token and the domain must CNAME to the console edge host. Both
// must pass in the same attempt.
func (s *Service) VerifyDomain(ctx context.Context, resellerID string) (VerifyResult, error) {
	b, err := s.repo.GetBranding(ctx, resellerID)
	if err != nil {
		return VerifyResult{}, err
	}
	if b.CustomDomain == "" || b.DomainToken == "" {
		return VerifyResult{}, fmt.Errorf("%w: no custom domain configured", store.ErrInvalid)
	}

	result := VerifyResult{}
	txts, err := s.resolver.TXT(ctx, challengeLabel+b.CustomDomain)
	if err != nil {
		result.Detail = fmt.Sprintf("TXT lookup failed: %v", err)
		return result, nil
	}
	for _, txt := range txts {
		if txt == b.DomainToken {
			result.TXTMatched = true
			break
		}
	}

	target, err := s.resolver.CNAME(ctx, b.CustomDomain)
	if err != nil {
		result.Detail = fmt.Sprintf("CNAME lookup failed: %v", err)
		return result, nil
	}
	result.CNAMEMatch = strings.EqualFold(target, s.edgeHost)

	switch {
	case !result.TXTMatched:
		result.Detail = fmt.Sprintf("TXT %s%s does not carry the challenge token", challengeLabel, b.CustomDomain)
	case !result.CNAMEMatch:
		result.Detail = fmt.Sprintf("%s does not CNAME to %s", b.CustomDomain, s.edgeHost)
	default:
		result.Verified = true
		if err := s.repo.MarkDomainVerified(ctx, resellerID, s.clock.Now()); err != nil {
			return VerifyResult{}, err
		}
		s.logger.Info("custom domain verified",
			zap.String("reseller_id", resellerID),
			zap.String("domain", b.CustomDomain))
	}
	return result, nil
}

// SSLStatus relays the issuer's certificate state for the verified domain.
func (s *Service) SSLStatus(ctx context.Context, resellerID string) (SSLStatus, error) {
	b, err := s.repo.GetBranding(ctx, resellerID)
	if err != nil {
		return "", err
	}
	if b.CustomDomain == "" {
		return "", fmt.Errorf("%w: no custom domain configured", store.ErrInvalid)
	}
	if b.DomainVerifiedAt == nil {
		return "", fmt.Errorf("%w: domain is not verified", store.ErrConflict)
	}
	return s.issuer.Status(ctx, b.CustomDomain)
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
