// Package counter implements the process-wide TTL cache over the
// counter store and the vote/view service that feeds it.
package counter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tooldex/tooldex/internal/metrics"
)

// Cache is a single-resource, time-bounded read cache. A read younger
// than the TTL is served from memory; an older read triggers a refresh
// through the fetch function. A failed refresh serves the previous value
// (stale) as long as one exists; only a cold cache surfaces the error.
//
// Constructed once at process start and shared across requests.
// Concurrent refreshes of the same resource may race; last writer wins,
// which is acceptable for a read-through cache that is not the system
// of record.
type Cache[V any] struct {
	resource string
	ttl      time.Duration
	fetch    func(ctx context.Context) (V, error)
	now      func() time.Time

	mu        sync.Mutex
	value     V
	fetchedAt time.Time
	primed    bool
}

// Option configures a Cache.
type Option func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithClock overrides the cache's time source. Tests use this to expire
// entries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *cacheOptions) {
		o.now = now
	}
}

// New creates a Cache for one resource with its own TTL.
func New[V any](resource string, ttl time.Duration, fetch func(ctx context.Context) (V, error), opts ...Option) *Cache[V] {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		resource: resource,
		ttl:      ttl,
		fetch:    fetch,
		now:      o.now,
	}
}

// Get returns the cached value and whether it is fresh. Fetch functions
// must return a value that is safe to hand to callers as-is; the cache
// never mutates a stored value in place (see Counts.Bump).
func (c *Cache[V]) Get(ctx context.Context) (V, bool, error) {
	c.mu.Lock()
	if c.primed && c.now().Sub(c.fetchedAt) <= c.ttl {
		v := c.value
		c.mu.Unlock()
		return v, true, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock so a slow store does not stall fresh reads
	// of other resources or concurrent stale serves.
	v, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		metrics.CacheRefreshTotal.WithLabelValues(c.resource, "error").Inc()
		if c.primed {
			slog.Warn("counter cache refresh failed, serving stale value",
				"resource", c.resource, "error", err)
			metrics.CacheStaleServedTotal.WithLabelValues(c.resource).Inc()
			return c.value, false, nil
		}
		var zero V
		return zero, false, fmt.Errorf("refresh %s: %w", c.resource, err)
	}

	metrics.CacheRefreshTotal.WithLabelValues(c.resource, "success").Inc()
	c.value = v
	c.fetchedAt = c.now()
	c.primed = true
	return v, true, nil
}

// Invalidate expires the entry so the next Get refetches. The last value
// is kept for stale serving if that refetch fails.
func (c *Cache[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// Counts is a Cache of per-target aggregate counts with write-through
// optimistic bumps.
type Counts struct {
	Cache[map[string]int64]
}

// NewCounts creates a counts cache for one resource.
func NewCounts(resource string, ttl time.Duration, fetch func(ctx context.Context) (map[string]int64, error), opts ...Option) *Counts {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Counts{}
	c.resource = resource
	c.ttl = ttl
	c.fetch = fetch
	c.now = o.now
	return c
}

// Bump applies an optimistic in-place update after a successful store
// increment, so the next read reflects the write without waiting for the
// refresh window. The map is replaced, not mutated, because callers may
// still hold the previous snapshot. A cold cache is left alone; the
// first read fetches the authoritative counts anyway.
func (c *Counts) Bump(target string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		return
	}
	next := make(map[string]int64, len(c.value)+1)
	for k, v := range c.value {
		next[k] = v
	}
	n := next[target] + delta
	if n < 0 {
		n = 0
	}
	next[target] = n
	c.value = next
}
