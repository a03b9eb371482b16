package branding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SSLStatus is the certificate state the issuer reports for a domain.
type SSLStatus string

// Issuer certificate states.
const (
	SSLPending  SSLStatus = "pending"
	SSLIssued   SSLStatus = "issued"
	SSLFailed   SSLStatus = "failed"
	SSLExpiring SSLStatus = "expiring"
)

// Issuer reports certificate status for a custom domain.
type Issuer interface {
	Status(ctx context.Context, domain string) (SSLStatus, error)
}

// IssuerClient polls the external certificate issuer's status API.
type IssuerClient struct {
	baseURL string
	http    *http.Client
}

// NewIssuerClient builds a client against the issuer API base URL.
func NewIssuerClient(baseURL string, client *http.Client) *IssuerClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &IssuerClient{baseURL: baseURL, http: client}
}

// Status fetches the issuer's state for the domain.
func (c *IssuerClient) Status(ctx context.Context, domain string) (SSLStatus, error) {
	u := c.baseURL + "/status?domain=" + url.QueryEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build issuer request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("query issuer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("issuer returned %d", resp.StatusCode)
	}

	var wire struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("decode issuer response: %w", err)
	}
	switch status := SSLStatus(wire.Status); status {
	case SSLPending, SSLIssued, SSLFailed, SSLExpiring:
		return status, nil
	default:
		return "", fmt.Errorf("issuer reported unknown status %q", wire.Status)
	}
}
