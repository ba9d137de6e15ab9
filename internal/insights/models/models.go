package models

import (
	"encoding/json"
	"math"
	"time"
)

// AlignedRecord is one (industry, year) observation carrying both the
// adoption measure and the cloud-usage measure.
type AlignedRecord struct {
	Industry           string  `json:"industry"`
	Year               int     `json:"year"`
	AdoptionRate       float64 `json:"adoption_rate"`
	UsageScore         float64 `json:"usage_score"`
	InvestmentMillions float64 `json:"investment_millions"`
	UseCasesCount      int     `json:"use_cases_count"`
}

// PValueInsufficient marks a p-value that could not be computed (n < 3).
const PValueInsufficient = -1.0

// CorrelationResult is the output of the statistics module. It is a value
// type and never mutated after construction.
type CorrelationResult struct {
	Coefficient float64   `json:"coefficient"`
	PValue      float64   `json:"p_value"`
	SampleSize  int       `json:"sample_size"`
	EffectSize  float64   `json:"effect_size"`
	Degenerate  bool      `json:"degenerate"`
	ComputedAt  time.Time `json:"computed_at"`
}

// HasPValue reports whether PValue holds a real probability rather than the sentinel.
func (r CorrelationResult) HasPValue() bool {
	return r.PValue >= 0 && r.PValue <= 1
}

// Defined reports whether the coefficient is a number.
func (r CorrelationResult) Defined() bool {
	return !math.IsNaN(r.Coefficient)
}

// MarshalJSON renders an undefined coefficient and the p-value sentinel as null.
func (r CorrelationResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Coefficient *float64  `json:"coefficient"`
		PValue      *float64  `json:"p_value"`
		SampleSize  int       `json:"sample_size"`
		EffectSize  float64   `json:"effect_size"`
		Degenerate  bool      `json:"degenerate"`
		ComputedAt  time.Time `json:"computed_at"`
	}{
		SampleSize: r.SampleSize,
		EffectSize: r.EffectSize,
		Degenerate: r.Degenerate,
		ComputedAt: r.ComputedAt,
	}
	if r.Defined() {
		c := r.Coefficient
		out.Coefficient = &c
	}
	if r.HasPValue() {
		p := r.PValue
		out.PValue = &p
	}
	return json.Marshal(out)
}

// ConfidenceScore is a bounded scalar in [0, 0.95].
type ConfidenceScore float64

// Badge is the UI bucket for a confidence score.
type Badge string

const (
	BadgeHigh   Badge = "high"
	BadgeMedium Badge = "medium"
	BadgeLow    Badge = "low"
)

// Category groups insight records for display and export.
type Category string

const (
	CategoryAdoptionTrends      Category = "adoption_trends"
	CategoryCorrelationAnalysis Category = "correlation_analysis"
	CategoryGrowthTrends        Category = "growth_trends"
	CategoryInvestmentAnalysis  Category = "investment_analysis"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryAdoptionTrends, CategoryCorrelationAnalysis, CategoryGrowthTrends, CategoryInvestmentAnalysis:
		return true
	}
	return false
}

// Tier is the adoption-rate bucket that selects template wording.
type Tier string

const (
	TierLeading    Tier = "leading"
	TierEmerging   Tier = "emerging"
	TierEarlyStage Tier = "early-stage"
)

// Tiers lists every tier from highest to lowest adoption.
var Tiers = []Tier{TierLeading, TierEmerging, TierEarlyStage}

// InsightRecord is one synthesized finding, recommendation or analysis.
type InsightRecord struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	ShortText       string             `json:"short_text"`
	Details         string             `json:"details"`
	Confidence      ConfidenceScore    `json:"confidence"`
	Category        Category           `json:"category"`
	Industry        string             `json:"industry,omitempty"`
	Tier            Tier               `json:"tier,omitempty"`
	StatisticalData map[string]float64 `json:"statistical_data"`
	DataSliceURL    string             `json:"data_slice_url"`
	CreatedAt       time.Time          `json:"created_at"`
}

// IndustryRanking is one row of the top-industries ranking.
type IndustryRanking struct {
	Industry                string  `json:"industry"`
	Tier                    Tier    `json:"tier"`
	AvgAdoptionRate         float64 `json:"avg_adoption_rate"`
	TotalInvestmentMillions float64 `json:"total_investment_millions"`
	AvgUsageScore           float64 `json:"avg_usage_score"`
	CompositeScore          float64 `json:"composite_score"`
}

// InsightsResult is the cached value for an insights query.
type InsightsResult struct {
	Records       []InsightRecord   `json:"records"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Categories    []Category        `json:"categories"`
	TopIndustries []IndustryRanking `json:"top_industries"`
	Correlation   CorrelationResult `json:"correlation"`
	Confidence    ConfidenceScore   `json:"confidence"`
	Filters       FilterSignature   `json:"filters_applied"`
}

// Find returns the record with the given id.
func (r *InsightsResult) Find(id string) (InsightRecord, bool) {
	if r == nil {
		return InsightRecord{}, false
	}
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return InsightRecord{}, false
}

// TopIndustry is the industry with the highest mean adoption rate.
type TopIndustry struct {
	Industry     string  `json:"industry"`
	AdoptionRate float64 `json:"adoption_rate"`
}

// GrowingIndustry is the industry with the largest year-over-year adoption gain.
type GrowingIndustry struct {
	Industry   string  `json:"industry"`
	GrowthRate float64 `json:"growth_rate"`
}

// KPISnapshot holds the dashboard summary scalars for one filter signature.
type KPISnapshot struct {
	TotalIndustries        int             `json:"total_industries"`
	AvgAdoption            float64         `json:"avg_adoption"`
	Empty                  bool            `json:"empty"`
	TotalInvestment        float64         `json:"total_investment"`
	TopIndustry            TopIndustry     `json:"top_industry"`
	FastestGrowingIndustry GrowingIndustry `json:"fastest_growing_industry"`
	ComputedAt             time.Time       `json:"computed_at"`
	FiltersApplied         FilterSignature `json:"filters_applied"`
}

// ResultKind discriminates the two cached result types sharing one key space.
type ResultKind string

const (
	KindInsights ResultKind = "insights"
	KindKPIs     ResultKind = "kpis"
)
