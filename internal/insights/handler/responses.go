package handler

import (
	"time"

	"pulse/internal/insights/cache"
	"pulse/internal/insights/confidence"
	"pulse/internal/insights/models"
)

// Envelope is the success body shared by every JSON endpoint.
type Envelope struct {
	Success  bool `json:"success"`
	Data     any  `json:"data"`
	Metadata any  `json:"metadata,omitempty"`
}

func ok(data, metadata any) Envelope {
	return Envelope{Success: true, Data: data, Metadata: metadata}
}

type InsightsMetadata struct {
	TotalInsights  int                      `json:"total_insights"`
	FiltersApplied models.FilterSignature   `json:"filters_applied"`
	Categories     []models.Category        `json:"categories"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Confidence     models.ConfidenceScore   `json:"confidence"`
	Badge          models.Badge             `json:"badge"`
	Correlation    models.CorrelationResult `json:"correlation"`
	TopIndustries  []models.IndustryRanking `json:"top_industries"`
}

func insightsResponse(result *models.InsightsResult) Envelope {
	return ok(result.Records, InsightsMetadata{
		TotalInsights:  len(result.Records),
		FiltersApplied: result.Filters,
		Categories:     result.Categories,
		GeneratedAt:    result.GeneratedAt,
		Confidence:     result.Confidence,
		Badge:          confidence.Badge(result.Confidence),
		Correlation:    result.Correlation,
		TopIndustries:  result.TopIndustries,
	})
}

type KPIMetadata struct {
	FiltersApplied models.FilterSignature `json:"filters_applied"`
	Message        string                 `json:"message"`
}

func kpiResponse(snap *models.KPISnapshot) Envelope {
	return ok(snap, KPIMetadata{
		FiltersApplied: snap.FiltersApplied,
		Message:        "KPIs computed successfully",
	})
}

type SliceMetadata struct {
	Metric       SliceMetric            `json:"metric"`
	TotalRecords int                    `json:"total_records"`
	Filters      models.FilterSignature `json:"filters"`
}

func sliceResponse(req sliceRequest, records []models.AlignedRecord) Envelope {
	return ok(records, SliceMetadata{
		Metric:       req.Metric,
		TotalRecords: len(records),
		Filters:      req.Filters,
	})
}

type RefreshResponse struct {
	Invalidated int `json:"invalidated"`
}

type CacheStatsResponse struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Coalesced uint64 `json:"coalesced"`
}

func fromStats(st cache.Stats) CacheStatsResponse {
	return CacheStatsResponse{
		Entries:   st.Entries,
		Hits:      st.Hits,
		Misses:    st.Misses,
		Evictions: st.Evictions,
		Coalesced: st.Coalesced,
	}
}

type HealthResponse struct {
	Status string             `json:"status"`
	Cache  CacheStatsResponse `json:"cache"`
}
