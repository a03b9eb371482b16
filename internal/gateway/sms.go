package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SMSConfig configures the SMS gateway client.
type SMSConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Limiter *Limiter
	Logger  *zap.Logger
}

// SMSClient sends text messages through the SMS gateway.
type SMSClient struct {
	baseURL string
	host    string
	apiKey  string
	client  *http.Client
	limiter *Limiter
	logger  *zap.Logger
}

// NewSMSClient builds an SMS client from cfg.
func NewSMSClient(cfg SMSConfig) *SMSClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SMSClient{
		baseURL: cfg.BaseURL,
		host:    hostOf(cfg.BaseURL),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send delivers one SMS and returns the gateway's message ID.
func (c *SMSClient) Send(ctx context.Context, to, body string) (string, error) {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return "", err
	}
	payload, err := json.Marshal(smsRequest{To: to, Message: body})
	if err != nil {
		return "", fmt.Errorf("marshal sms: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sms", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do on close failure

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("sms gateway", resp)
	}

	var wire struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("decode sms response: %w", err)
	}
	c.logger.Debug("sms sent", zap.String("message_id", wire.MessageID))
	return wire.MessageID, nil
}

// statusError maps a non-2xx gateway response to the typed errors.
func statusError(gateway string, resp *http.Response) error {
	msg := gatewayMessage(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrRejected, gateway, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, gateway, resp.StatusCode, msg)
}

// gatewayMessage extracts {"message":...} from an error body, falling
// back to the raw text. Reads at most 4 KiB.
func gatewayMessage(r io.Reader) string {
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

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return rawURL
}
