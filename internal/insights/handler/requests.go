package handler

import (
	"net/url"
	"strings"

	"pulse/internal/insights/models"
	dErrors "pulse/pkg/domain-errors"
)

// SliceMetric names the measure a drill-down link was built for.
type SliceMetric string

const (
	MetricAdoption    SliceMetric = "adoption"
	MetricGrowth      SliceMetric = "growth"
	MetricInvestment  SliceMetric = "investment"
	MetricCorrelation SliceMetric = "correlation"
)

func (m SliceMetric) IsValid() bool {
	switch m {
	case MetricAdoption, MetricGrowth, MetricInvestment, MetricCorrelation:
		return true
	}
	return false
}

// filtersFromQuery reads year and industry constraints. The plural names are
// accepted for clients of the earlier dashboard API. Repeated industry values
// are merged.
func filtersFromQuery(q url.Values) models.FilterSignature {
	year := first(q, "year", "years")
	var industries []string
	for _, name := range []string{"industry", "industries"} {
		industries = append(industries, q[name]...)
	}
	return models.ParseFilters(year, strings.Join(industries, ","))
}

func first(q url.Values, names ...string) string {
	for _, name := range names {
		if v := q.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// sliceRequest is the parsed query of GET /data/slice.
type sliceRequest struct {
	Filters models.FilterSignature
	Metric  SliceMetric
}

func parseSliceRequest(q url.Values) (sliceRequest, error) {
	metric := SliceMetric(strings.ToLower(strings.TrimSpace(q.Get("metric"))))
	if metric == "" {
		metric = MetricAdoption
	}
	if !metric.IsValid() {
		return sliceRequest{}, dErrors.New(dErrors.CodeBadRequest, "unknown metric: "+string(metric))
	}
	return sliceRequest{Filters: filtersFromQuery(q), Metric: metric}, nil
}
