// Package cache memoizes computed insight and KPI results.
//
// Entries live in a bounded least-recently-used list guarded by a single
// mutex. Expiry is checked lazily on read; there is no background sweep.
// Concurrent misses on one key share a single computation. Invalidate and
// Purge start a new generation: flights begun earlier still answer their
// waiters but do not store their result.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"pulse/internal/insights/metrics"
)

const (
	DefaultCapacity = 256
	DefaultTTL      = 10 * time.Minute
)

// Clock returns the current time.
type Clock func() time.Time

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) (any, error)

// Entry is a snapshot of one cached value and its bookkeeping.
type Entry struct {
	Key            Key
	Value          any
	InsertedAt     time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Coalesced uint64 `json:"coalesced"`
	Entries   int    `json:"entries"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[Key, *Entry]
	stats   Stats
	group   singleflight.Group
	gen     uint64
	flights map[Key]int
	ttl     time.Duration
	clock   Clock
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDefaultTTL sets the TTL used when Put or GetOrCompute get a non-positive one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMetrics reports cache activity to Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a cache holding at most capacity entries.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, errors.New("cache capacity must be positive")
	}
	lru, err := simplelru.NewLRU[Key, *Entry](capacity, nil)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		lru:     lru,
		ttl:     DefaultTTL,
		clock:   time.Now,
		flights: make(map[Key]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Get returns the live value for key. An expired entry is removed and
// reported as a miss. A hit refreshes the entry's recency.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.liveLocked(key); ok {
		c.stats.Hits++
		c.metrics.IncrementHit(string(key.Kind))
		return v, true
	}
	c.stats.Misses++
	c.metrics.IncrementMiss(string(key.Kind))
	return nil, false
}

// Put stores value under key for ttl, replacing any existing entry and
// evicting the least recently used entry when full.
func (c *Cache) Put(key Key, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value, ttl)
}

// putLocked must be called with mu held.
func (c *Cache) putLocked(key Key, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.clock()
	if evicted := c.lru.Add(key, &Entry{
		Key:            key,
		Value:          value,
		InsertedAt:     now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}); evicted {
		c.stats.Evictions++
		c.metrics.IncrementEviction()
	}
	c.metrics.SetEntries(c.lru.Len())
}

// Invalidate removes every entry for which match returns true and reports
// how many were removed. A nil match removes everything. Results of
// computations still running are not stored, whatever the match.
func (c *Cache) Invalidate(match func(Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if match == nil || match(*e) {
			c.lru.Remove(key)
			removed++
		}
	}
	c.newGenerationLocked()
	c.metrics.SetEntries(c.lru.Len())
	return removed
}

// Touch marks a live entry as recently used without counting a hit.
func (c *Cache) Touch(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.liveLocked(key)
	return ok
}

// Range calls fn with a snapshot of every live entry until fn returns false.
// It does not change recency or counters. fn must not call back into the cache.
func (c *Cache) Range(fn func(Entry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok || !now.Before(e.ExpiresAt) {
			continue
		}
		if !fn(*e) {
			return
		}
	}
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.newGenerationLocked()
	c.metrics.SetEntries(0)
}

// newGenerationLocked detaches running flights so later callers start a
// fresh computation. Must be called with mu held.
func (c *Cache) newGenerationLocked() {
	c.gen++
	for key := range c.flights {
		c.group.Forget(key.String())
	}
}

// Len reports the number of entries, expired ones not yet read included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.lru.Len()
	return s
}

// GetOrCompute returns the cached value for key, or computes, stores and
// returns it. Concurrent callers missing on the same key share one call to
// fn. The computation runs outside the cache lock and detached from the
// caller's cancellation; a caller whose ctx ends stops waiting with
// ctx.Err() while the computation still completes and fills the cache,
// unless the cache was invalidated meanwhile.
// The bool result reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, fn ComputeFunc) (any, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	leader := false
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		leader = true
		// Another flight may have filled the key between Get and DoChan.
		start, v, ok := c.beginFlight(key)
		if ok {
			return v, nil
		}
		defer c.endFlight(key)

		v, err := fn(flightCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == start {
			c.putLocked(key, v, ttl)
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if !leader {
			c.recordCoalesced()
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// beginFlight returns the live value when one exists, otherwise registers a
// flight for key and returns the current generation.
func (c *Cache) beginFlight(key Key) (uint64, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.liveLocked(key); ok {
		return 0, v, true
	}
	c.flights[key]++
	return c.gen, nil, false
}

func (c *Cache) endFlight(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[key]--; c.flights[key] <= 0 {
		delete(c.flights, key)
	}
}

// liveLocked must be called with mu held.
func (c *Cache) liveLocked(key Key) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	now := c.clock()
	if !now.Before(e.ExpiresAt) {
		c.lru.Remove(key)
		c.metrics.SetEntries(c.lru.Len())
		return nil, false
	}
	e.LastAccessedAt = now
	return e.Value, true
}

func (c *Cache) recordCoalesced() {
	c.mu.Lock()
	c.stats.Coalesced++
	c.mu.Unlock()
	c.metrics.IncrementCoalesced()
}
