package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WhatsAppConfig configures the WhatsApp gateway client.
type WhatsAppConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Limiter *Limiter
	Logger  *zap.Logger
}

// WhatsAppClient sends messages through the WhatsApp business gateway.
type WhatsAppClient struct {
	baseURL string
	host    string
	apiKey  string
	client  *http.Client
	limiter *Limiter
	logger  *zap.Logger
}

// NewWhatsAppClient builds a WhatsApp client from cfg.
func NewWhatsAppClient(cfg WhatsAppConfig) *WhatsAppClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &WhatsAppClient{
		baseURL: cfg.BaseURL,
		host:    hostOf(cfg.BaseURL),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}
}

type whatsAppRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// Send delivers one WhatsApp message and returns the gateway's message ID.
func (c *WhatsAppClient) Send(ctx context.Context, to, body string) (string, error) {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return "", err
	}
	payload, err := json.Marshal(whatsAppRequest{Recipient: to, Text: body})
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do on close failure

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("whatsapp gateway", resp)
	}

	var wire struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("decode whatsapp response: %w", err)
	}
	c.logger.Debug("whatsapp message sent", zap.String("message_id", wire.ID))
	return wire.ID, nil
}
