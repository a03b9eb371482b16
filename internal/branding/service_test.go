package branding

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

func validInput() Input {
	return Input{
		ResellerID:   "rsl-1",
		DisplayName:  "Northlink Internet",
		PrimaryColor: "#1a73e8",
		SupportPhone: "+15550100999",
		CustomDomain: "portal.northlink.example",
	}
}

func newTestService(repo *fakeRepo, resolver *fakeResolver, issuer *fakeIssuer) *Service {
	return New(Config{
		Repo:         repo,
		Blobs:        &fakeBlobs{},
		Resolver:     resolver,
		Issuer:       issuer,
		Clock:        frozenClock{},
		EdgeHost:     "edge.strataisp.example",
		MaxLogoBytes: 1024,
	})
}

// TestUpsertMintsToken gives a new custom domain a challenge token.
func TestUpsertMintsToken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeResolver{}, &fakeIssuer{})

	b, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, b.DomainToken, 32)
	require.Nil(t, b.DomainVerifiedAt)
}

// TestUpsertDomainChangeClearsVerification re-challenges when the domain
// moves; an unchanged domain keeps its verified state.
func TestUpsertDomainChangeClearsVerification(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	resolver := &fakeResolver{}
	svc := newTestService(repo, resolver, &fakeIssuer{})

	b, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)
	resolver.txt = []string{b.DomainToken}
	resolver.cname = "edge.strataisp.example"
	_, err = svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)

	same := validInput()
	same.DisplayName = "Northlink ISP"
	kept, err := svc.Upsert(context.Background(), same)
	require.NoError(t, err)
	require.NotNil(t, kept.DomainVerifiedAt)
	require.Equal(t, b.DomainToken, kept.DomainToken)

	moved := validInput()
	moved.CustomDomain = "my.northlink.example"
	cleared, err := svc.Upsert(context.Background(), moved)
	require.NoError(t, err)
	require.Nil(t, cleared.DomainVerifiedAt)
	require.NotEqual(t, b.DomainToken, cleared.DomainToken)
}

// TestUpsertValidation covers the field guards.
func TestUpsertValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing reseller", func(in *Input) { in.ResellerID = "" }},
		{"missing display name", func(in *Input) { in.DisplayName = "" }},
		{"bad color", func(in *Input) { in.PrimaryColor = "blue" }},
		{"bad domain", func(in *Input) { in.CustomDomain = "not a domain" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestService(newFakeRepo(), &fakeResolver{}, &fakeIssuer{})
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Upsert(context.Background(), in)
			require.ErrorIs(t, err, store.ErrInvalid)
		})
	}
}

// TestUploadLogo stores accepted types and records the URI.
func TestUploadLogo(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeResolver{}, &fakeIssuer{})
	_, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)

	uri, err := svc.UploadLogo(context.Background(), "rsl-1", "image/png", 512, strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "memory://branding/rsl-1/logo.png", uri)
	require.Equal(t, uri, repo.records["rsl-1"].LogoURI)
}

// TestUploadLogoGuards rejects wrong types and oversized uploads.
func TestUploadLogoGuards(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeResolver{}, &fakeIssuer{})
	_, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.UploadLogo(context.Background(), "rsl-1", "application/pdf", 100, strings.NewReader("x"))
	require.ErrorIs(t, err, store.ErrInvalid)

	_, err = svc.UploadLogo(context.Background(), "rsl-1", "image/png", 4096, strings.NewReader("x"))
	require.ErrorIs(t, err, store.ErrInvalid)
}

// TestVerifyDomain passes only when both the TXT token and the CNAME
// target check out in the same attempt.
func TestVerifyDomain(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	resolver := &fakeResolver{}
	svc := newTestService(repo, resolver, &fakeIssuer{})
	b, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)

	result, err := svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.Contains(t, result.Detail, "challenge token")

	resolver.txt = []string{"stale-token", b.DomainToken}
	result, err = svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)
	require.True(t, result.TXTMatched)
	require.False(t, result.Verified)
	require.Contains(t, result.Detail, "CNAME")

	resolver.cname = "EDGE.strataisp.example"
	result, err = svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.NotNil(t, repo.records["rsl-1"].DomainVerifiedAt)
	require.Equal(t, challengeLabel+"portal.northlink.example", resolver.lastTXTName)
}

// TestVerifyDomainLookupFailure reports the DNS error without verifying.
func TestVerifyDomainLookupFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	resolver := &fakeResolver{err: errors.New("SERVFAIL")}
	svc := newTestService(repo, resolver, &fakeIssuer{})
	_, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)

	result, err := svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.Contains(t, result.Detail, "SERVFAIL")
}

// TestSSLStatus requires a verified domain before polling the issuer.
func TestSSLStatus(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	resolver := &fakeResolver{}
	issuer := &fakeIssuer{status: SSLIssued}
	svc := newTestService(repo, resolver, issuer)
	b, err := svc.Upsert(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.SSLStatus(context.Background(), "rsl-1")
	require.ErrorIs(t, err, store.ErrConflict)

	resolver.txt = []string{b.DomainToken}
	resolver.cname = "edge.strataisp.example"
	_, err = svc.VerifyDomain(context.Background(), "rsl-1")
	require.NoError(t, err)

	status, err := svc.SSLStatus(context.Background(), "rsl-1")
	require.NoError(t, err)
	require.Equal(t, SSLIssued, status)
}

type frozenClock struct{}

func (frozenClock) Now() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

type fakeResolver struct {
	txt         []string
	cname       string
	err         error
	lastTXTName string
}

func (r *fakeResolver) TXT(_ context.Context, name string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.lastTXTName = name
	return r.txt, nil
}

func (r *fakeResolver) CNAME(context.Context, string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.cname, nil
}

type fakeIssuer struct {
	status SSLStatus
	err    error
}

func (i *fakeIssuer) Status(context.Context, string) (SSLStatus, error) {
	if i.err != nil {
		return "", i.err
	}
	return i.status, nil
}

type fakeBlobs struct{}

func (fakeBlobs) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	return "memory://" + path, nil
}

type fakeRepo struct {
	records map[string]store.Branding
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]store.Branding)}
}

func (r *fakeRepo) UpsertBranding(_ context.Context, b store.Branding) error {
	r.records[b.ResellerID] = b
	return nil
}

func (r *fakeRepo) GetBranding(_ context.Context, resellerID string) (store.Branding, error) {
	b, ok := r.records[resellerID]
	if !ok {
		return store.Branding{}, store.ErrNotFound
	}
	return b, nil
}

func (r *fakeRepo) SetLogoURI(_ context.Context, resellerID, uri string, at time.Time) error {
	b, ok := r.records[resellerID]
	if !ok {
		return store.ErrNotFound
	}
	b.LogoURI = uri
	b.UpdatedAt = at
	r.records[resellerID] = b
	return nil
}

func (r *fakeRepo) SetDomainToken(_ context.Context, resellerID, token string, at time.Time) error {
	b, ok := r.records[resellerID]
	if !ok {
		return store.ErrNotFound
	}
	b.DomainToken = token
	b.DomainVerifiedAt = nil
	b.UpdatedAt = at
	r.records[resellerID] = b
	return nil
}

func (r *fakeRepo) MarkDomainVerified(_ context.Context, resellerID string, at time.Time) error {
	b, ok := r.records[resellerID]
	if !ok {
		return store.ErrNotFound
	}
	b.DomainVerifiedAt = &at
	b.UpdatedAt = at
	r.records[resellerID] = b
	return nil
}
