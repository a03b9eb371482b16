package diag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ServiceConfig wires the diagnostics service.
type ServiceConfig struct {
	AgentBaseURL string
	AgentTimeout time.Duration
	Resolvers    []string
	RouterTTL    time.Duration
	Lookup       RouterLookup
	Logger       *zap.Logger
}

// Service fronts all diagnostics: router inventory, probe stream
// sessions, traceroute and DNS checks.
type Service struct {
	directory *Directory
	agent     *AgentClient
	dns       *DNSChecker
	logger    *zap.Logger
}

// NewService builds the diagnostics service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		directory: NewDirectory(cfg.Lookup, cfg.RouterTTL),
		agent:     NewAgentClient(cfg.AgentBaseURL, cfg.AgentTimeout, logger),
		dns:       NewDNSChecker(cfg.Resolvers, cfg.AgentTimeout),
		logger:    logger,
	}
}

// Routers lists the router inventory for the diagnostics UI.
func (s *Service) Routers(ctx context.Context) ([]Router, error) {
	return s.directory.Routers(ctx)
}

// ValidateProbe enforces the business rules on a probe request before a
// session starts: a known router, non-empty target, a supported packet
// size and a bounded count.
func (s *Service) ValidateProbe(ctx context.Context, req ProbeRequest) error {
	if req.Target == "" {
		return fmt.Errorf("target is required")
	}
	if req.RouterID == "" {
		return fmt.Errorf("router_id is required")
	}
	if !ValidProbeSize(req.ProbeSize) {
		return fmt.Errorf("size %d is not a supported probe size", req.ProbeSize)
	}
	if req.Count < 1 || req.Count > MaxProbeCount {
		return fmt.Errorf("count must be between 1 and %d", MaxProbeCount)
	}
	if _, err := s.directory.Router(ctx, req.RouterID); err != nil {
		return fmt.Errorf("unknown router %s: %w", req.RouterID, err)
	}
	return nil
}

// NewSession builds a consumer for one probe stream session. Each caller
// owns its consumer; sessions never share state.
func (s *Service) NewSession(onLine func(DisplayLine)) *Consumer {
	return NewConsumer(ConsumerConfig{
		Endpoint: s.agent.StreamEndpoint(),
		OnLine:   onLine,
		Logger:   s.logger,
	})
}

// Traceroute runs a buffered traceroute through the given router.
func (s *Service) Traceroute(ctx context.Context, routerID, target string) (TracerouteResult, error) {
	if _, err := s.directory.Router(ctx, routerID); err != nil {
		return TracerouteResult{}, err
	}
	return s.agent.Traceroute(ctx, routerID, target)
}

// DNSCheck resolves diagnostic records for host.
func (s *Service) DNSCheck(ctx context.Context, host string) (DNSResult, error) {
	if host == "" {
		return DNSResult{}, fmt.Errorf("host is required")
	}
	return s.dns.Check(ctx, host)
}

// Close releases the directory cache.
func (s *Service) Close() {
	s.directory.Close()
}
