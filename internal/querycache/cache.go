// Package querycache is the client-side query cache: keyed entries with
// tiered staleness, request de-duplication, debounced prefetch and a
// periodic sweep. A Cache is an explicit object; construct one per client.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the value for a key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	key         Key
	tier        Tier
	value       any
	fetchedAt   time.Time
	invalidated bool
}

// Cache holds query results.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]Key
	staled   map[string]bool // in-flight keys invalidated before they landed

	group    singleflight.Group
	policies map[Tier]Policy
	now      func() time.Time
	log      *zap.Logger

	stopSweep context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPolicies overrides tier windows. Missing tiers keep defaults.
func WithPolicies(p map[Tier]Policy) Option {
	return func(c *Cache) {
		for t, pol := range p {
			c.policies[t] = pol
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*entry),
		inflight: make(map[string]Key),
		staled:   make(map[string]bool),
		policies: make(map[Tier]Policy, len(DefaultPolicies)),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for t, p := range DefaultPolicies {
		c.policies[t] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached value for key while it is fresh. Otherwise it
// calls fetch, sharing one call between concurrent callers of the same
// key. The fetch runs with the first caller's context; a waiter whose own
// context is still live retries once if that caller gave up.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	if len(key) == 0 {
		return nil, errors.New("querycache: empty key")
	}
	k := key.String()

	for attempt := 0; ; attempt++ {
		if v, ok := c.fresh(k); ok {
			return v, nil
		}

		ch := c.group.DoChan(k, func() (any, error) {
			c.begin(k, key)
			v, err := fetch(ctx)
			c.finish(k, key, v, err)
			return v, err
		})

		select {
		case r := <-ch:
			if r.Err != nil && attempt == 0 && ctx.Err() == nil && isContextErr(r.Err) {
				continue
			}
			return r.Val, r.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) begin(k string, key Key) {
	c.mu.Lock()
	c.inflight[k] = key
	delete(c.staled, k)
	c.mu.Unlock()
}

func (c *Cache) finish(k string, key Key, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stale := c.staled[k]
	delete(c.inflight, k)
	delete(c.staled, k)
	if err != nil {
		return
	}
	c.entries[k] = &entry{
		key:         key,
		tier:        key.Tier(),
		value:       v,
		fetchedAt:   c.now(),
		invalidated: stale,
	}
}

func (c *Cache) fresh(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok || e.invalidated {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) > c.policies[e.tier].Fresh {
		return nil, false
	}
	return e.value, true
}

// Peek returns retained data for key without fetching. fresh reports
// whether Fetch would serve it as is. Data older than its tier's retention
// window is not returned.
func (c *Cache) Peek(key Key) (value any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key.String()]
	if !found {
		return nil, false, false
	}
	age := c.now().Sub(e.fetchedAt)
	pol := c.policies[e.tier]
	if age > pol.Retain {
		return nil, false, false
	}
	return e.value, !e.invalidated && age <= pol.Fresh, true
}

// Set stores value for key as freshly fetched.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = &entry{key: key, tier: key.Tier(), value: value, fetchedAt: c.now()}
}

// Invalidate marks every entry under prefix stale so the next Fetch
// refetches. Retained data stays visible to Peek. Fetches in flight for
// matching keys land already stale.
func (c *Cache) Invalidate(prefix Key) int {
	return c.invalidate(func(k Key) bool { return k.HasPrefix(prefix) })
}

// InvalidateTier marks every entry of tier stale.
func (c *Cache) InvalidateTier(tier Tier) int {
	return c.invalidate(func(k Key) bool { return k.Tier() == tier })
}

// OnRefocus handles the client regaining focus. Only the realtime tier is
// invalidated.
func (c *Cache) OnRefocus() int {
	n := c.InvalidateTier(TierRealtime)
	c.log.Debug("refocus invalidated realtime queries", zap.Int("entries", n))
	return n
}

func (c *Cache) invalidate(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if match(e.key) && !e.invalidated {
			e.invalidated = true
			n++
		}
	}
	for k, key := range c.inflight {
		if match(key) {
			c.staled[k] = true
		}
	}
	return n
}

// Remove evicts every entry under prefix.
func (c *Cache) Remove(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Cleanup evicts entries fetched more than maxAge ago.
func (c *Cache) Cleanup(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) > maxAge {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// StartCleanup runs Cleanup(maxAge) every interval until Close. Calling it
// again while running is a no-op.
func (c *Cache) StartCleanup(interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	c.mu.Lock()
	if c.stopSweep != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweep = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Cleanup(maxAge); n > 0 {
					c.log.Debug("query cache sweep", zap.Int("evicted", n))
				}
			}
		}
	}()
}

// Close stops the sweep and drops every entry.
func (c *Cache) Close() {
	c.mu.Lock()
	stop := c.stopSweep
	c.stopSweep = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	c.wg.Wait()
	c.Clear()
}

// Get is Fetch with a typed result.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: %s holds %T, not %T", key, v, zero)
	}
	return t, nil
}
