package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TracerouteHop is one hop of a traceroute, with up to three round trips.
type TracerouteHop struct {
	Hop   int       `json:"hop"`
	Host  string    `json:"host"`
	RTTMs []float64 `json:"rtt_ms"`
}

// TracerouteResult is the agent's buffered traceroute response.
type TracerouteResult struct {
	Target string          `json:"target"`
	Hops   []TracerouteHop `json:"hops"`
}

// AgentClient calls the router agent gateway. The gateway routes each
// request to the selected network element, so one base URL serves every
// router.
type AgentClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAgentClient builds a client for the agent gateway at baseURL.
// The timeout bounds buffered calls only; streaming requests use their
// own unbounded client.
func NewAgentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *AgentClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// StreamEndpoint is the URL probe stream consumers POST to.
func (c *AgentClient) StreamEndpoint() string {
	return c.baseURL + "/probe/stream"
}

type tracerouteRequest struct {
	RouterID string `json:"router_id"`
	Target   string `json:"target"`
}

// Traceroute runs a buffered traceroute through the given router.
func (c *AgentClient) Traceroute(ctx context.Context, routerID, target string) (TracerouteResult, error) {
	payload, err := json.Marshal(tracerouteRequest{RouterID: routerID, Target: target})
	if err != nil {
		return TracerouteResult{}, fmt.Errorf("marshal traceroute request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/traceroute", bytes.NewReader(payload))
	if err != nil {
		return TracerouteResult{}, fmt.Errorf("build traceroute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return TracerouteResult{}, fmt.Errorf("traceroute via %s: %w", routerID, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do on close failure

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TracerouteResult{}, fmt.Errorf("traceroute via %s: agent returned %d: %s",
			routerID, resp.StatusCode, errorMessage(resp.Body))
	}

	var result TracerouteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return TracerouteResult{}, fmt.Errorf("decode traceroute response: %w", err)
	}
	return result, nil
}
