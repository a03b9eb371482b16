// Package platform is the HTTP client for the core subscriber-management
// API. The console never owns subscriber, plan, or session data; it reads
// and writes them through this client.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// APIError is a non-2xx response from the core.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("core returned %d: %s", e.Status, e.Message)
}

// Config configures the core client.
type Config struct {
	// BaseURL is the core's internal API root, e.g. http://core.internal:8080.
	BaseURL string
	// APIKey is sent as X-API-Key on every request.
	APIKey string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxTries bounds attempts per call, first try included.
	MaxTries uint
	// RetryInterval seeds the exponential backoff between attempts.
	RetryInterval time.Duration
	Logger        *zap.Logger
}

// Client calls the platform core. Failed calls retry with exponential
// backoff; 4xx responses are permanent and return immediately.
type Client struct {
	baseURL       string
	apiKey        string
	client        *http.Client
	maxTries      uint
	retryInterval time.Duration
	logger        *zap.Logger
}

// New builds a core client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		client:        &http.Client{Timeout: cfg.Timeout},
		maxTries:      cfg.MaxTries,
		retryInterval: cfg.RetryInterval,
		logger:        cfg.Logger,
	}
}

// do runs one core call with retries. in is marshaled as the JSON body
// when non-nil; the response body is unmarshaled into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
	}

	operation := func() ([]byte, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck // nothing useful to do on close failure

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Message: coreMessage(resp.Body)}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(apiErr)
			}
			return nil, apiErr
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return data, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInterval

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.Debug("retrying core call",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("delay", delay),
				zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// coreMessage extracts {"message":...} from an error body, falling back
// to the raw text. Reads at most 4 KiB.
func coreMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no response body"
	}
	var wire struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err == nil && wire.Message != "" {
		return wire.Message
	}
	return string(data)
}

// statusOf returns the HTTP status carried by err, or 0 when err is not
// an APIError.
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
