package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/cache"
	"github.com/strataisp/console/internal/platform"
)

// TestSummaryComposesOnMiss pulls all four aggregates and caches the result.
func TestSummaryComposesOnMiss(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	store := newFakeCache()
	svc := New(Config{Core: core, Cache: store, CacheTTL: time.Minute})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 120, summary.Subscribers.Active)
	require.Equal(t, 7, summary.Invoices.OpenCount)
	require.Equal(t, 42, summary.ActiveSessions)
	require.False(t, summary.GeneratedAt.IsZero())
	require.Contains(t, store.values, summaryKey)
	require.Equal(t, 1, core.calls)
}

// TestSummaryHitSkipsCore serves the second read from cache.
func TestSummaryHitSkipsCore(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	store := newFakeCache()
	svc := New(Config{Core: core, Cache: store, CacheTTL: time.Minute})

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, core.calls)
	require.Equal(t, 120, second.Subscribers.Active)
}

// TestSummaryDegradesOnCacheError keeps serving from the core when Redis
// is down.
func TestSummaryDegradesOnCacheError(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	store := newFakeCache()
	store.err = errors.New("connection refused")
	svc := New(Config{Core: core, Cache: store, CacheTTL: time.Minute})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 120, summary.Subscribers.Active)
	require.Equal(t, 1, core.calls)
}

// TestSummaryPropagatesCoreError surfaces a platform failure.
func TestSummaryPropagatesCoreError(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	core.err = errors.New("core unreachable")
	svc := New(Config{Core: core, Cache: newFakeCache(), CacheTTL: time.Minute})

	_, err := svc.Summary(context.Background())
	require.ErrorContains(t, err, "core unreachable")
}

// TestRefreshInvalidates forces the next read back to the core.
func TestRefreshInvalidates(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	store := newFakeCache()
	svc := New(Config{Core: core, Cache: store, CacheTTL: time.Minute})

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Refresh(context.Background()))
	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, core.calls)
}

// TestNilCache runs every read against the core directly.
func TestNilCache(t *testing.T) {
	t.Parallel()

	core := newFakeCore()
	svc := New(Config{Core: core})

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, core.calls)
	require.NoError(t, svc.Refresh(context.Background()))
}

type fakeCore struct {
	calls int
	err   error
}

func newFakeCore() *fakeCore {
	return &fakeCore{}
}

func (c *fakeCore) SubscriberTotals(context.Context) (platform.SubscriberTotals, error) {
	c.calls++
	if c.err != nil {
		return platform.SubscriberTotals{}, c.err
	}
	return platform.SubscriberTotals{Active: 120, Suspended: 4, Expired: 9}, nil
}

func (c *fakeCore) InvoiceTotals(context.Context) (platform.InvoiceTotals, error) {
	if c.err != nil {
		return platform.InvoiceTotals{}, c.err
	}
	return platform.InvoiceTotals{OpenCount: 7, OpenAmountCents: 34950, OverdueCount: 2}, nil
}

func (c *fakeCore) TrafficToday(context.Context) (platform.TrafficTotals, error) {
	if c.err != nil {
		return platform.TrafficTotals{}, c.err
	}
	return platform.TrafficTotals{DownMB: 51200, UpMB: 8400}, nil
}

func (c *fakeCore) ActiveSessionCount(context.Context) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return 42, nil
}

type fakeCache struct {
	values map[string]Summary
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]Summary)}
}

func (c *fakeCache) Get(_ context.Context, key string, out any) error {
	if c.err != nil {
		return c.err
	}
	value, ok := c.values[key]
	if !ok {
		return cache.ErrMiss
	}
	*out.(*Summary) = value
	return nil
}

func (c *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.values[key] = value.(Summary)
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	if c.err != nil {
		return c.err
	}
	delete(c.values, key)
	return nil
}
