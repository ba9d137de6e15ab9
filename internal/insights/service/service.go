package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pulse/internal/insights/cache"
	"pulse/internal/insights/composer"
	"pulse/internal/insights/confidence"
	"pulse/internal/insights/export"
	"pulse/internal/insights/kpi"
	"pulse/internal/insights/metrics"
	"pulse/internal/insights/models"
	"pulse/internal/insights/ports"
	"pulse/internal/insights/stats"
	dErrors "pulse/pkg/domain-errors"
	"pulse/pkg/platform/sentinel"
	"pulse/pkg/requestcontext"
)

const tracerName = "pulse/insights"

// Service answers insight, KPI and export queries, computing results on a
// cache miss and serving them from the cache until they expire.
//
// Results returned from the cache are shared between callers and must be
// treated as read-only.
type Service struct {
	source  ports.RecordSource
	cache   *cache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
	ttl     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the time stamped on computed results.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTTL sets how long computed results stay cached.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New constructs a Service.
func New(source ports.RecordSource, c *cache.Cache, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("record source is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}
	s := &Service{
		source: source,
		cache:  c,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
		ttl:    cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetInsights returns the composed insights for filters.
func (s *Service) GetInsights(ctx context.Context, filters models.FilterSignature) (*models.InsightsResult, error) {
	ctx, span := s.tracer.Start(ctx, "insights.GetInsights",
		trace.WithAttributes(attribute.String("filters", filters.Canonical())))
	defer span.End()

	key := cache.KeyFor(models.KindInsights, filters)
	v, hit, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) (any, error) {
		return s.computeInsights(ctx, filters)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to compute insights")
	}
	span.SetAttributes(attribute.Bool("cache_hit", hit))

	result, ok := v.(*models.InsightsResult)
	if !ok {
		return nil, s.fail(span, dErrors.New(dErrors.CodeInternal, "unexpected cached value for insights"), "")
	}
	s.logger.DebugContext(ctx, "insights served",
		"filters", filters.Canonical(),
		"cache_hit", hit,
		"records", len(result.Records),
	)
	return result, nil
}

// GetKPIs returns the KPI snapshot for filters.
func (s *Service) GetKPIs(ctx context.Context, filters models.FilterSignature) (*models.KPISnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "insights.GetKPIs",
		trace.WithAttributes(attribute.String("filters", filters.Canonical())))
	defer span.End()

	key := cache.KeyFor(models.KindKPIs, filters)
	v, hit, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) (any, error) {
		return s.computeKPIs(ctx, filters)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to compute kpis")
	}
	span.SetAttributes(attribute.Bool("cache_hit", hit))

	snap, ok := v.(*models.KPISnapshot)
	if !ok {
		return nil, s.fail(span, dErrors.New(dErrors.CodeInternal, "unexpected cached value for kpis"), "")
	}
	s.logger.DebugContext(ctx, "kpis served",
		"filters", filters.Canonical(),
		"cache_hit", hit,
	)
	return snap, nil
}

// ExportInsight serializes a cached insight as CSV. Ids that were never
// computed, or whose result has expired or been evicted, are not found.
func (s *Service) ExportInsight(ctx context.Context, id string) ([]byte, error) {
	var (
		record models.InsightRecord
		key    cache.Key
		found  bool
	)
	s.cache.Range(func(e cache.Entry) bool {
		if e.Key.Kind != models.KindInsights {
			return true
		}
		result, ok := e.Value.(*models.InsightsResult)
		if !ok {
			return true
		}
		record, found = result.Find(id)
		key = e.Key
		return !found
	})
	if !found {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "insight not found")
	}
	// An export counts as a use of the result it came from.
	s.cache.Touch(key)

	out, err := export.Insight(record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export insight")
	}
	s.logger.InfoContext(ctx, "insight exported", "insight_id", id, "category", record.Category)
	return out, nil
}

// Refresh drops every cached result and reports how many were removed.
func (s *Service) Refresh(ctx context.Context) int {
	removed := s.cache.Invalidate(nil)
	s.logger.InfoContext(ctx, "insights cache refreshed", "removed", removed)
	return removed
}

// DataSlice returns the raw records behind a drill-down link. It is not cached.
func (s *Service) DataSlice(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error) {
	records, err := s.source.AlignedRecords(ctx, filters)
	if err != nil {
		s.metrics.IncrementSourceFailure("data_slice")
		return nil, translate(err, "failed to load records")
	}
	return records, nil
}

// now prefers the time pinned to the request so one response carries a
// single timestamp.
func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.Time(ctx); ok {
		return t
	}
	return s.clock()
}

// CacheStats exposes the cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *Service) computeInsights(ctx context.Context, filters models.FilterSignature) (*models.InsightsResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCompute(string(models.KindInsights), time.Since(start)) }()

	records, err := s.source.AlignedRecords(ctx, filters)
	if err != nil {
		s.metrics.IncrementSourceFailure("insights")
		return nil, err
	}

	now := s.now(ctx)
	correlation, err := stats.Compute(records, now)
	var insufficient *stats.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		s.logger.DebugContext(ctx, "insufficient data for correlation",
			"filters", filters.Canonical(),
			"sample_size", insufficient.SampleSize,
		)
	case err != nil:
		return nil, err
	case correlation.Degenerate:
		s.logger.DebugContext(ctx, "degenerate statistics: no variation observed",
			"filters", filters.Canonical(),
			"sample_size", correlation.SampleSize,
		)
	}

	score := confidence.Score(correlation)
	aggregates := composer.AggregateByIndustry(records)
	insights := composer.Compose(composer.Input{
		Aggregates:  aggregates,
		Correlation: correlation,
		Confidence:  score,
		Filters:     filters,
		Now:         now,
	})

	top := composer.Rank(aggregates)
	if len(top) > composer.TopIndustries {
		top = top[:composer.TopIndustries]
	}

	s.logger.InfoContext(ctx, "insights computed",
		"filters", filters.Canonical(),
		"sample_size", correlation.SampleSize,
		"confidence", float64(score),
		"badge", confidence.Badge(score),
		"records", len(insights),
	)
	return &models.InsightsResult{
		Records:       insights,
		GeneratedAt:   now,
		Categories:    composer.Categories(insights),
		TopIndustries: top,
		Correlation:   correlation,
		Confidence:    score,
		Filters:       filters,
	}, nil
}

func (s *Service) computeKPIs(ctx context.Context, filters models.FilterSignature) (*models.KPISnapshot, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCompute(string(models.KindKPIs), time.Since(start)) }()

	var filtered, series []models.AlignedRecord
	_, hasYear := filters.Year()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		filtered, err = s.source.AlignedRecords(gctx, filters)
		return err
	})
	if hasYear {
		// Growth always compares against the prior year, so it reads the
		// series without the year constraint.
		g.Go(func() error {
			var err error
			series, err = s.source.AlignedRecords(gctx, filters.WithoutYear())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.IncrementSourceFailure("kpis")
		return nil, err
	}
	if !hasYear {
		series = filtered
	}

	snap := kpi.Aggregate(filtered, series, filters, s.now(ctx))
	s.logger.InfoContext(ctx, "kpis computed",
		"filters", filters.Canonical(),
		"total_industries", snap.TotalIndustries,
		"empty", snap.Empty,
	)
	return &snap, nil
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	err = translate(err, msg)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// translate maps infrastructure and context failures onto domain codes.
// Errors that already carry a domain code pass through.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
