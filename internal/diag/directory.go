package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Router is one network element diagnostics can run through.
type Router struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Address string `json:"address"`
}

// RouterLookup resolves router inventory, normally from the platform core.
type RouterLookup interface {
	Router(ctx context.Context, id string) (Router, error)
	Routers(ctx context.Context) ([]Router, error)
}

// Directory caches router lookups so probe and traceroute requests do not
// pay a core round-trip per call. Entries expire after the configured TTL.
type Directory struct {
	lookup RouterLookup
	cache  *ttlcache.Cache[string, Router]
}

// NewDirectory builds a Directory caching lookups for ttl.
func NewDirectory(lookup RouterLookup, ttl time.Duration) *Directory {
	cache := ttlcache.New[string, Router](ttlcache.WithTTL[string, Router](ttl))
	go cache.Start()
	return &Directory{lookup: lookup, cache: cache}
}

// Router resolves one router, from cache when fresh.
func (d *Directory) Router(ctx context.Context, id string) (Router, error) {
	if item := d.cache.Get(id); item != nil {
		return item.Value(), nil
	}
	router, err := d.lookup.Router(ctx, id)
	if err != nil {
		return Router{}, fmt.Errorf("resolve router %s: %w", id, err)
	}
	d.cache.Set(id, router, ttlcache.DefaultTTL)
	return router, nil
}

// Routers lists the full inventory. Listings always hit the source so the
// UI dropdown reflects newly provisioned elements; individual entries are
// primed into the cache as a side effect.
func (d *Directory) Routers(ctx context.Context) ([]Router, error) {
	routers, err := d.lookup.Routers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routers: %w", err)
	}
	for _, r := range routers {
		d.cache.Set(r.ID, r, ttlcache.DefaultTTL)
	}
	return routers, nil
}

// Close stops the cache's expiry loop.
func (d *Directory) Close() {
	d.cache.Stop()
}
