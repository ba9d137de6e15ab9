package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"pulse/internal/insights/metrics"
	"pulse/internal/insights/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type CacheSuite struct {
	suite.Suite
	clock   *fakeClock
	metrics *metrics.Metrics
	cache   *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.cache = s.newCache(DefaultCapacity)
}

func (s *CacheSuite) newCache(capacity int) *Cache {
	c, err := New(capacity, WithClock(s.clock.Now), WithMetrics(s.metrics))
	s.Require().NoError(err)
	return c
}

func year(y int) models.FilterSignature {
	return models.NewFilterSignature(&y)
}

// =============================================================================
// Keys
// =============================================================================

func (s *CacheSuite) TestKeyForIsOrderIndependent() {
	a := KeyFor(models.KindInsights, models.ParseFilters("2023", "Retail,Finance"))
	b := KeyFor(models.KindInsights, models.ParseFilters(" 2023", "Finance, Retail,Finance"))
	s.Equal(a, b)
	s.Len(a.Digest, 64)

	s.NotEqual(a, KeyFor(models.KindKPIs, models.ParseFilters("2023", "Retail,Finance")))
	s.NotEqual(a, KeyFor(models.KindInsights, models.ParseFilters("2022", "Retail,Finance")))
}

// =============================================================================
// Get / Put / expiry
// =============================================================================

func (s *CacheSuite) TestTTLBoundary() {
	key := KeyFor(models.KindKPIs, year(2023))
	s.cache.Put(key, "snapshot", DefaultTTL)

	s.clock.Advance(9 * time.Minute)
	v, ok := s.cache.Get(key)
	s.True(ok)
	s.Equal("snapshot", v)

	s.clock.Advance(2 * time.Minute)
	_, ok = s.cache.Get(key)
	s.False(ok)
	s.Zero(s.cache.Len(), "expired entry is removed on read")
}

func (s *CacheSuite) TestNonPositiveTTLUsesDefault() {
	key := KeyFor(models.KindKPIs, year(2023))
	s.cache.Put(key, 1, 0)

	s.clock.Advance(DefaultTTL - time.Second)
	_, ok := s.cache.Get(key)
	s.True(ok)

	s.clock.Advance(time.Second)
	_, ok = s.cache.Get(key)
	s.False(ok)
}

func (s *CacheSuite) TestPutReplacesEntry() {
	key := KeyFor(models.KindInsights, year(2023))
	s.cache.Put(key, "first", time.Minute)
	s.cache.Put(key, "second", time.Minute)

	v, ok := s.cache.Get(key)
	s.True(ok)
	s.Equal("second", v)
	s.Equal(1, s.cache.Len())
}

func (s *CacheSuite) TestLRUEviction() {
	c := s.newCache(2)
	a, b, d := KeyFor(models.KindKPIs, year(2021)), KeyFor(models.KindKPIs, year(2022)), KeyFor(models.KindKPIs, year(2023))

	c.Put(a, "a", time.Minute)
	c.Put(b, "b", time.Minute)
	_, ok := c.Get(a)
	s.Require().True(ok)

	c.Put(d, "d", time.Minute)

	_, ok = c.Get(b)
	s.False(ok, "least recently used entry is evicted")
	_, ok = c.Get(a)
	s.True(ok)
	_, ok = c.Get(d)
	s.True(ok)

	stats := c.Stats()
	s.Equal(uint64(1), stats.Evictions)
	s.Equal(2, stats.Entries)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheEvictions))
}

func (s *CacheSuite) TestStatsAndMetrics() {
	key := KeyFor(models.KindInsights, year(2023))
	s.cache.Get(key)
	s.cache.Put(key, "v", time.Minute)
	s.cache.Get(key)
	s.cache.Get(key)

	stats := s.cache.Stats()
	s.Equal(uint64(2), stats.Hits)
	s.Equal(uint64(1), stats.Misses)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.CacheHits.WithLabelValues("insights")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheMisses.WithLabelValues("insights")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheEntries))
}

// =============================================================================
// Invalidation
// =============================================================================

func (s *CacheSuite) TestInvalidate() {
	for _, y := range []int{2021, 2022, 2023} {
		s.cache.Put(KeyFor(models.KindInsights, year(y)), y, time.Minute)
		s.cache.Put(KeyFor(models.KindKPIs, year(y)), y, time.Minute)
	}

	s.Run("predicate", func() {
		removed := s.cache.Invalidate(func(e Entry) bool {
			return e.Key.Kind == models.KindKPIs
		})
		s.Equal(3, removed)
		s.Equal(3, s.cache.Len())
	})

	s.Run("nil removes everything", func() {
		s.Equal(3, s.cache.Invalidate(nil))
		s.Zero(s.cache.Len())
	})
}

func (s *CacheSuite) TestPurge() {
	s.cache.Put(KeyFor(models.KindInsights, year(2023)), 1, time.Minute)
	s.cache.Purge()
	s.Zero(s.cache.Len())
	s.Zero(s.cache.Stats().Evictions)
}

// =============================================================================
// GetOrCompute
// =============================================================================

func (s *CacheSuite) TestGetOrComputeCachesResult() {
	key := KeyFor(models.KindKPIs, year(2023))
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return "computed", nil
	}

	v, hit, err := s.cache.GetOrCompute(context.Background(), key, time.Minute, compute)
	s.Require().NoError(err)
	s.False(hit)
	s.Equal("computed", v)

	v, hit, err = s.cache.GetOrCompute(context.Background(), key, time.Minute, compute)
	s.Require().NoError(err)
	s.True(hit)
	s.Equal("computed", v)
	s.Equal(1, calls)
}

func (s *CacheSuite) TestGetOrComputeDoesNotCacheErrors() {
	key := KeyFor(models.KindKPIs, year(2023))
	boom := errors.New("boom")
	calls := 0

	_, _, err := s.cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
		calls++
		return nil, boom
	})
	s.ErrorIs(err, boom)
	s.Zero(s.cache.Len())

	v, _, err := s.cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	s.Require().NoError(err)
	s.Equal("ok", v)
	s.Equal(2, calls)
}

func (s *CacheSuite) TestConcurrentMissesComputeOnce() {
	key := KeyFor(models.KindInsights, models.NewFilterSignature(nil))
	var calls atomic.Int32
	release := make(chan struct{})

	const callers = 32
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = s.cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return &models.InsightsResult{}, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int32(1), calls.Load())
	for i := range callers {
		s.Require().NoError(errs[i])
		s.Same(results[0], results[i])
	}
}

func (s *CacheSuite) TestCallerTimeoutDoesNotBreakFlight() {
	key := KeyFor(models.KindKPIs, year(2023))
	release := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := s.cache.GetOrCompute(ctx, key, time.Minute, func(fctx context.Context) (any, error) {
			close(started)
			<-release
			if err := fctx.Err(); err != nil {
				return nil, err
			}
			return "late", nil
		})
		errCh <- err
	}()

	<-started
	cancel()
	s.ErrorIs(<-errCh, context.Canceled)

	close(release)
	s.Eventually(func() bool {
		v, ok := s.cache.Get(key)
		return ok && v == "late"
	}, time.Second, 5*time.Millisecond)
}

// startBlockedFlight begins a computation that runs until release is closed.
func (s *CacheSuite) startBlockedFlight(key Key, value any, release <-chan struct{}) <-chan any {
	started := make(chan struct{})
	out := make(chan any, 1)
	go func() {
		v, _, err := s.cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
			close(started)
			<-release
			return value, nil
		})
		s.NoError(err)
		out <- v
	}()
	<-started
	return out
}

func (s *CacheSuite) TestInvalidateDuringFlight() {
	s.Run("stale result is returned to its caller but not stored", func() {
		key := KeyFor(models.KindInsights, models.NewFilterSignature(nil))
		release := make(chan struct{})
		out := s.startBlockedFlight(key, "before-refresh", release)

		s.cache.Invalidate(nil)
		close(release)

		s.Equal("before-refresh", <-out)
		_, ok := s.cache.Get(key)
		s.False(ok)
		s.Zero(s.cache.Len())
	})

	s.Run("callers after invalidation do not join the old flight", func() {
		key := KeyFor(models.KindKPIs, year(2024))
		release := make(chan struct{})
		out := s.startBlockedFlight(key, "before-refresh", release)

		s.cache.Purge()

		v, hit, err := s.cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
			return "after-refresh", nil
		})
		s.Require().NoError(err)
		s.False(hit)
		s.Equal("after-refresh", v)

		close(release)
		s.Equal("before-refresh", <-out)

		v, ok := s.cache.Get(key)
		s.True(ok)
		s.Equal("after-refresh", v)
	})
}

func (s *CacheSuite) TestTouchRefreshesRecency() {
	c := s.newCache(2)
	a, b, d := KeyFor(models.KindInsights, year(2021)), KeyFor(models.KindInsights, year(2022)), KeyFor(models.KindInsights, year(2023))

	c.Put(a, "a", time.Minute)
	c.Put(b, "b", time.Minute)
	s.True(c.Touch(a))
	c.Put(d, "d", time.Minute)

	_, ok := c.Get(a)
	s.True(ok, "touched entry survives eviction")
	_, ok = c.Get(b)
	s.False(ok)
	s.Equal(uint64(1), c.Stats().Hits, "touch is not a hit")

	s.Run("expired or missing entries are not touched", func() {
		s.clock.Advance(2 * time.Minute)
		s.False(c.Touch(d))
		s.False(c.Touch(KeyFor(models.KindKPIs, year(2030))))
	})
}

func (s *CacheSuite) TestNewRejectsNonPositiveCapacity() {
	_, err := New(0)
	s.Error(err)
}

func (s *CacheSuite) TestRangeSkipsExpiredEntries() {
	s.cache.Put(KeyFor(models.KindInsights, year(2022)), "short", time.Minute)
	s.cache.Put(KeyFor(models.KindInsights, year(2023)), "long", time.Hour)
	s.clock.Advance(2 * time.Minute)

	var seen []any
	s.cache.Range(func(e Entry) bool {
		seen = append(seen, e.Value)
		return true
	})
	s.Equal([]any{"long"}, seen)
	s.Zero(s.cache.Stats().Hits)
}
