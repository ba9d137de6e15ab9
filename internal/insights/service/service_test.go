package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pulse/internal/insights/cache"
	"pulse/internal/insights/metrics"
	"pulse/internal/insights/models"
	"pulse/internal/insights/ports/mocks"
	dErrors "pulse/pkg/domain-errors"
	"pulse/pkg/platform/sentinel"
	"pulse/pkg/requestcontext"
)

// =============================================================================
// Insights Service Test Suite
// =============================================================================
// The record source is mocked so tests can count fetches: every fetch is a
// cache miss, which is how cache transparency and single-flight are verified.

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

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockSource *mocks.MockRecordSource
	clock      *fakeClock
	metrics    *metrics.Metrics
	cache      *cache.Cache
	service    *Service
	records    []models.AlignedRecord
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockSource = mocks.NewMockRecordSource(s.ctrl)
	s.clock = &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.cache, err = cache.New(cache.DefaultCapacity, cache.WithClock(s.clock.Now), cache.WithMetrics(s.metrics))
	s.Require().NoError(err)

	s.service, err = New(s.mockSource, s.cache,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(s.clock.Now),
	)
	s.Require().NoError(err)

	s.records = []models.AlignedRecord{
		{Industry: "Healthcare", Year: 2022, AdoptionRate: 0.3, UsageScore: 0.4, InvestmentMillions: 10, UseCasesCount: 2},
		{Industry: "Healthcare", Year: 2023, AdoptionRate: 0.45, UsageScore: 0.5, InvestmentMillions: 20, UseCasesCount: 4},
		{Industry: "Finance", Year: 2023, AdoptionRate: 0.7, UsageScore: 0.8, InvestmentMillions: 40, UseCasesCount: 8},
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// serve answers source calls from s.records, applying the filters.
func (s *ServiceSuite) serve(_ context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error) {
	out := []models.AlignedRecord{}
	for _, r := range s.records {
		if filters.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func year(y int) models.FilterSignature {
	return models.NewFilterSignature(&y)
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil source returns error", func() {
		_, err := New(nil, s.cache)
		s.Require().Error(err)
		s.Contains(err.Error(), "record source is required")
	})

	s.Run("nil cache returns error", func() {
		_, err := New(s.mockSource, nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "cache is required")
	})
}

// =============================================================================
// GetKPIs
// =============================================================================

func (s *ServiceSuite) TestGetKPIsYearFilter() {
	filters := year(2023)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters).DoAndReturn(s.serve).Times(1)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters.WithoutYear()).DoAndReturn(s.serve).Times(1)

	snap, err := s.service.GetKPIs(context.Background(), filters)
	s.Require().NoError(err)

	s.Equal(2, snap.TotalIndustries)
	s.InDelta(0.575, snap.AvgAdoption, 1e-9)
	s.Equal("Finance", snap.TopIndustry.Industry)
	s.Equal("Healthcare", snap.FastestGrowingIndustry.Industry)
	s.InDelta(0.15, snap.FastestGrowingIndustry.GrowthRate, 1e-9)
	s.InDelta(60.0, snap.TotalInvestment, 1e-9)
}

func (s *ServiceSuite) TestGetKPIsWithoutYearFetchesOnce() {
	filters := models.NewFilterSignature(nil)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters).DoAndReturn(s.serve).Times(1)

	snap, err := s.service.GetKPIs(context.Background(), filters)
	s.Require().NoError(err)
	s.Equal(2, snap.TotalIndustries)
	s.Equal("Healthcare", snap.FastestGrowingIndustry.Industry)
}

func (s *ServiceSuite) TestGetKPIsCachedUntilExpiry() {
	filters := year(2023)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(4)

	first, err := s.service.GetKPIs(context.Background(), filters)
	s.Require().NoError(err)

	s.clock.Advance(5 * time.Minute)
	second, err := s.service.GetKPIs(context.Background(), filters)
	s.Require().NoError(err)
	s.Equal(first.ComputedAt, second.ComputedAt)
	s.Equal(first, second)

	s.clock.Advance(6 * time.Minute)
	third, err := s.service.GetKPIs(context.Background(), filters)
	s.Require().NoError(err)
	s.True(third.ComputedAt.After(first.ComputedAt))
}

func (s *ServiceSuite) TestGetKPIsEquivalentFiltersShareEntry() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)

	a, err := s.service.GetKPIs(context.Background(), models.ParseFilters("", "Healthcare,Finance"))
	s.Require().NoError(err)
	b, err := s.service.GetKPIs(context.Background(), models.ParseFilters("", " Finance ,Healthcare"))
	s.Require().NoError(err)
	s.Same(a, b)
}

// =============================================================================
// GetInsights
// =============================================================================

func (s *ServiceSuite) TestGetInsights() {
	filters := models.NewFilterSignature(nil)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters).DoAndReturn(s.serve).Times(1)

	result, err := s.service.GetInsights(context.Background(), filters)
	s.Require().NoError(err)

	s.NotEmpty(result.Records)
	s.Equal(3, result.Correlation.SampleSize)
	s.Equal(s.clock.Now(), result.GeneratedAt)
	s.Len(result.TopIndustries, 2)
	s.Equal("Finance", result.TopIndustries[0].Industry)
	s.Contains(result.Categories, models.CategoryCorrelationAnalysis)
	for _, r := range result.Records {
		s.Equal(result.Confidence, r.Confidence)
	}

	again, err := s.service.GetInsights(context.Background(), filters)
	s.Require().NoError(err)
	s.Same(result, again)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheHits.WithLabelValues("insights")))
}

func (s *ServiceSuite) TestGetInsightsUsesRequestTime() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)
	pinned := time.Date(2025, 3, 1, 12, 0, 5, 0, time.UTC)

	result, err := s.service.GetInsights(requestcontext.WithTime(context.Background(), pinned), models.NewFilterSignature(nil))
	s.Require().NoError(err)
	s.Equal(pinned, result.GeneratedAt)
	for _, r := range result.Records {
		s.Equal(pinned, r.CreatedAt)
	}
}

func (s *ServiceSuite) TestGetInsightsSingleRecord() {
	s.records = s.records[:1]
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)

	result, err := s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().NoError(err)
	s.Require().Len(result.Records, 1)
	s.Equal(models.ConfidenceScore(0), result.Records[0].Confidence)
	s.False(result.Correlation.Defined())
}

func (s *ServiceSuite) TestGetInsightsNoMatches() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)

	result, err := s.service.GetInsights(context.Background(), models.ParseFilters("1999", ""))
	s.Require().NoError(err)
	s.Empty(result.Records)
	s.Empty(result.TopIndustries)
}

func (s *ServiceSuite) TestConcurrentGetInsightsComputeOnce() {
	filters := year(2023)
	release := make(chan struct{})
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters).
		DoAndReturn(func(ctx context.Context, f models.FilterSignature) ([]models.AlignedRecord, error) {
			<-release
			return s.serve(ctx, f)
		}).Times(1)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*models.InsightsResult, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = s.service.GetInsights(context.Background(), filters)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		s.Require().NotNil(results[i])
		s.Same(results[0], results[i])
	}
}

func (s *ServiceSuite) TestSourceFailureIsInternalAndNotCached() {
	boom := errors.New("connection refused")
	gomock.InOrder(
		s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).Return(nil, boom),
		s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve),
	)

	_, err := s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, boom)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SourceFailures.WithLabelValues("insights")))

	_, err = s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.NoError(err)
}

func (s *ServiceSuite) TestCallerDeadlineIsTimeout() {
	release := make(chan struct{})
	defer close(release)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f models.FilterSignature) ([]models.AlignedRecord, error) {
			<-release
			return s.serve(ctx, f)
		}).Times(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.service.GetInsights(ctx, models.NewFilterSignature(nil))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

// =============================================================================
// Export, refresh and data slice
// =============================================================================

func (s *ServiceSuite) TestExportInsight() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)

	result, err := s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().NoError(err)
	target := result.Records[0]

	out, err := s.service.ExportInsight(context.Background(), target.ID)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(out), "field,value\n"))
	s.Contains(string(out), "id,"+target.ID)
}

func (s *ServiceSuite) TestExportKeepsResultRecentlyUsed() {
	small, err := cache.New(2, cache.WithClock(s.clock.Now))
	s.Require().NoError(err)
	svc, err := New(s.mockSource, small, WithClock(s.clock.Now))
	s.Require().NoError(err)
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(3)

	all := models.NewFilterSignature(nil)
	result, err := svc.GetInsights(context.Background(), all)
	s.Require().NoError(err)
	_, err = svc.GetInsights(context.Background(), models.ParseFilters("2023", ""))
	s.Require().NoError(err)

	_, err = svc.ExportInsight(context.Background(), result.Records[0].ID)
	s.Require().NoError(err)

	_, err = svc.GetKPIs(context.Background(), all)
	s.Require().NoError(err)

	_, ok := small.Get(cache.KeyFor(models.KindInsights, all))
	s.True(ok, "exported result outlives the older untouched one")
	_, ok = small.Get(cache.KeyFor(models.KindInsights, models.ParseFilters("2023", "")))
	s.False(ok)
}

func (s *ServiceSuite) TestExportUnknownInsight() {
	_, err := s.service.ExportInsight(context.Background(), "does-not-exist")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestExportExpiredInsight() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(1)

	result, err := s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().NoError(err)

	s.clock.Advance(cache.DefaultTTL + time.Second)
	_, err = s.service.ExportInsight(context.Background(), result.Records[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRefresh() {
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), gomock.Any()).DoAndReturn(s.serve).Times(2)

	_, err := s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().NoError(err)

	s.Equal(1, s.service.Refresh(context.Background()))
	s.Zero(s.service.CacheStats().Entries)

	_, err = s.service.GetInsights(context.Background(), models.NewFilterSignature(nil))
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestDataSlice() {
	filters := models.ParseFilters("", "Healthcare")
	s.mockSource.EXPECT().AlignedRecords(gomock.Any(), filters).DoAndReturn(s.serve).Times(2)

	records, err := s.service.DataSlice(context.Background(), filters)
	s.Require().NoError(err)
	s.Len(records, 2)

	_, err = s.service.DataSlice(context.Background(), filters)
	s.Require().NoError(err)
}
