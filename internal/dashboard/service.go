// Package dashboard composes the landing-page summary from platform core
// aggregates, with a short-lived Redis cache in front.
package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/cache"
	"github.com/strataisp/console/internal/platform"
)

const summaryKey = "dashboard:summary"

// Core is the slice of the platform client the dashboard reads.
type Core interface {
	SubscriberTotals(ctx context.Context) (platform.SubscriberTotals, error)
	InvoiceTotals(ctx context.Context) (platform.InvoiceTotals, error)
	TrafficToday(ctx context.Context) (platform.TrafficTotals, error)
	ActiveSessionCount(ctx context.Context) (int, error)
}

// Store is the cache surface the dashboard uses.
type Store interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Summary is the aggregate the landing page renders.
type Summary struct {
	Subscribers    platform.SubscriberTotals `json:"subscribers"`
	Invoices       platform.InvoiceTotals    `json:"invoices"`
	Traffic        platform.TrafficTotals    `json:"traffic"`
	ActiveSessions int                       `json:"active_sessions"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

// Config wires the dashboard service.
type Config struct {
	Core     Core
	Cache    Store
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Service serves the cached dashboard summary.
type Service struct {
	core     Core
	cache    Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// New builds the dashboard service. A nil Cache disables caching.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		core:     cfg.Core,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Summary returns the cached aggregate, composing it from the core on a
// miss. Cache failures degrade to a direct core call and are only logged.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.cache != nil {
		var cached Summary
		err := s.cache.Get(ctx, summaryKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return Summary{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Refresh drops the cached summary so the next read hits the core.
func (s *Service) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, summaryKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
	return nil
}

func (s *Service) compose(ctx context.Context) (Summary, error) {
	subscribers, err := s.core.SubscriberTotals(ctx)
	if err != nil {
		return Summary{}, err
	}
	invoices, err := s.core.InvoiceTotals(ctx)
	if err != nil {
		return Summary{}, err
	}
	traffic, err := s.core.TrafficToday(ctx)
	if err != nil {
		return Summary{}, err
	}
	sessions, err := s.core.ActiveSessionCount(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Subscribers:    subscribers,
		Invoices:       invoices,
		Traffic:        traffic,
		ActiveSessions: sessions,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
