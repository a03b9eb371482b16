package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strataisp/console/internal/branding"
	"github.com/strataisp/console/internal/store"
)

// BrandingService is the slice of the branding service the API uses.
type BrandingService interface {
	Get(ctx context.Context, resellerID string) (store.Branding, error)
	Upsert(ctx context.Context, in branding.Input) (store.Branding, error)
	UploadLogo(ctx context.Context, resellerID, contentType string, size int64, data io.Reader) (string, error)
	VerifyDomain(ctx context.Context, resellerID string) (branding.VerifyResult, error)
	SSLStatus(ctx context.Context, resellerID string) (branding.SSLStatus, error)
}

type brandingRequest struct {
	DisplayName  string `json:"display_name"`
	PrimaryColor string `json:"primary_color"`
	SupportPhone string `json:"support_phone"`
	CustomDomain string `json:"custom_domain"`
}

type brandingResponse struct {
	ResellerID     string     `json:"reseller_id"`
	DisplayName    string     `json:"display_name"`
	LogoURI        string     `json:"logo_uri,omitempty"`
	PrimaryColor   string     `json:"primary_color"`
	SupportPhone   string     `json:"support_phone"`
	CustomDomain   string     `json:"custom_domain,omitempty"`
	DomainToken    string     `json:"domain_token,omitempty"`
	DomainVerified bool       `json:"domain_verified"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toBrandingResponse(b store.Branding) brandingResponse {
	return brandingResponse{
		ResellerID:     b.ResellerID,
		DisplayName:    b.DisplayName,
		LogoURI:        b.LogoURI,
		PrimaryColor:   b.PrimaryColor,
		SupportPhone:   b.SupportPhone,
		CustomDomain:   b.CustomDomain,
		DomainToken:    b.DomainToken,
		DomainVerified: b.DomainVerifiedAt != nil,
		VerifiedAt:     b.DomainVerifiedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (s *Server) getBranding(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Branding.Get(r.Context(), chi.URLParam(r, "reseller_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBrandingResponse(b))
}

func (s *Server) upsertBranding(w http.ResponseWriter, r *http.Request) {
	var req brandingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	b, err := s.svc.Branding.Upsert(r.Context(), branding.Input{
		ResellerID:   chi.URLParam(r, "reseller_id"),
		DisplayName:  req.DisplayName,
		PrimaryColor: req.PrimaryColor,
		SupportPhone: req.SupportPhone,
		CustomDomain: req.CustomDomain,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBrandingResponse(b))
}

// uploadBrandingLogo takes the image as the raw request body; the
// Content-Type header names the format.
func (s *Server) uploadBrandingLogo(w http.ResponseWriter, r *http.Request) {
	uri, err := s.svc.Branding.UploadLogo(
		r.Context(),
		chi.URLParam(r, "reseller_id"),
		r.Header.Get("Content-Type"),
		r.ContentLength,
		r.Body,
	)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logo_uri": uri})
}

func (s *Server) verifyBrandingDomain(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Branding.VerifyDomain(r.Context(), chi.URLParam(r, "reseller_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) brandingSSLStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Branding.SSLStatus(r.Context(), chi.URLParam(r, "reseller_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ssl_status": string(status)})
}
