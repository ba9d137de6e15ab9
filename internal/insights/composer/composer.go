// Package composer turns per-industry aggregates and correlation statistics
// into deterministic, templated insight records.
package composer

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulse/internal/insights/models"
)

// TopIndustries is how many rankings an insights result exposes.
const TopIndustries = 5

const dataSlicePath = "/api/v1/data/slice"

// insightNamespace scopes the name-based insight ids.
var insightNamespace = uuid.MustParse("6f1c2b9e-4d0a-4b8e-9a4f-2c7d3e1b8a60")

// template indexes keep ids distinct between variants of the same category.
const (
	indexCorrelation = iota
	indexDegenerate
	indexInsufficient
)

// Input is everything Compose needs. It is read-only.
type Input struct {
	Aggregates  []IndustryAggregate
	Correlation models.CorrelationResult
	Confidence  models.ConfidenceScore
	Filters     models.FilterSignature
	Now         time.Time
}

// Compose emits, in order: one finding per present tier, a growth trend for
// each tier representative with consecutive years, exactly one correlation
// analysis, and one recommendation per present tier. An empty input yields an
// empty list; fewer than two observations yield a single "not enough data"
// record.
func Compose(in Input) []models.InsightRecord {
	if len(in.Aggregates) == 0 {
		return []models.InsightRecord{}
	}
	if !in.Correlation.Defined() {
		return []models.InsightRecord{insufficientRecord(in)}
	}

	reps := representatives(in.Aggregates)

	records := make([]models.InsightRecord, 0, 3*len(reps)+1)
	for _, rep := range reps {
		records = append(records, findingRecord(in, rep))
	}
	for _, rep := range reps {
		if rec, ok := growthRecord(in, rep); ok {
			records = append(records, rec)
		}
	}
	records = append(records, correlationRecord(in))
	for _, rep := range reps {
		records = append(records, recommendationRecord(in, rep))
	}
	return records
}

// Categories lists the distinct categories of records, sorted.
func Categories(records []models.InsightRecord) []models.Category {
	out := make([]models.Category, 0, 4)
	for _, r := range records {
		if !slices.Contains(out, r.Category) {
			out = append(out, r.Category)
		}
	}
	slices.Sort(out)
	return out
}

// InsightID derives the stable id of a record from its category, the filters
// it was composed under, the industry it describes ("all" when none) and the
// template variant.
func InsightID(category models.Category, filters models.FilterSignature, industry string, templateIndex int) string {
	if industry == "" {
		industry = "all"
	}
	name := string(category) + "|" + filters.Canonical() + "|" + industry + "|" + strconv.Itoa(templateIndex)
	return uuid.NewSHA1(insightNamespace, []byte(name)).String()
}

type representative struct {
	tier models.Tier
	agg  IndustryAggregate
	rank int
}

// representatives picks the best-ranked industry of every present tier, in
// tier order.
func representatives(aggregates []IndustryAggregate) []representative {
	byName := make(map[string]IndustryAggregate, len(aggregates))
	for _, a := range aggregates {
		byName[a.Industry] = a
	}
	picked := make(map[models.Tier]representative)
	for i, r := range Rank(aggregates) {
		if _, ok := picked[r.Tier]; !ok {
			picked[r.Tier] = representative{tier: r.Tier, agg: byName[r.Industry], rank: i + 1}
		}
	}
	out := make([]representative, 0, len(picked))
	for _, tier := range models.Tiers {
		if rep, ok := picked[tier]; ok {
			out = append(out, rep)
		}
	}
	return out
}

func tierIndex(tier models.Tier) int {
	return slices.Index(models.Tiers, tier)
}

func (in Input) record(category models.Category, industry string, tier models.Tier, index int, t text, metric string, data map[string]float64) models.InsightRecord {
	return models.InsightRecord{
		ID:              InsightID(category, in.Filters, industry, index),
		Title:           t.title,
		ShortText:       t.short,
		Details:         t.details,
		Confidence:      in.Confidence,
		Category:        category,
		Industry:        industry,
		Tier:            tier,
		StatisticalData: data,
		DataSliceURL:    dataSliceURL(industry, in.Filters, metric),
		CreatedAt:       in.Now,
	}
}

func findingRecord(in Input, rep representative) models.InsightRecord {
	a := rep.agg
	data := map[string]float64{
		"adoption_rate":       models.RoundTo(a.AvgAdoption, 3),
		"avg_usage_score":     models.RoundTo(a.AvgUsage, 3),
		"investment_millions": models.RoundTo(a.TotalInvestment, 3),
		"use_cases_count":     float64(a.UseCases),
		"rank":                float64(rep.rank),
	}
	if g, _, _, ok := a.YoYGrowth(); ok {
		data["yoy_growth"] = models.RoundTo(g, 3)
	}
	return in.record(models.CategoryAdoptionTrends, a.Industry, rep.tier, tierIndex(rep.tier),
		findingText(rep.tier, a), "adoption", data)
}

func growthRecord(in Input, rep representative) (models.InsightRecord, bool) {
	a := rep.agg
	growth, from, to, ok := a.YoYGrowth()
	if !ok {
		return models.InsightRecord{}, false
	}
	data := map[string]float64{
		"growth_rate":    models.RoundTo(growth, 3),
		"from_year":      float64(from),
		"to_year":        float64(to),
		"years_analyzed": float64(len(a.AdoptionByYear)),
	}
	return in.record(models.CategoryGrowthTrends, a.Industry, rep.tier, tierIndex(rep.tier),
		growthText(rep.tier, a, growth, from, to), "growth", data), true
}

func recommendationRecord(in Input, rep representative) models.InsightRecord {
	a := rep.agg
	data := map[string]float64{
		"investment_per_use_case": models.RoundTo(a.InvestmentPerUseCase(), 3),
		"investment_millions":     models.RoundTo(a.TotalInvestment, 3),
		"adoption_rate":           models.RoundTo(a.AvgAdoption, 3),
	}
	return in.record(models.CategoryInvestmentAnalysis, a.Industry, rep.tier, tierIndex(rep.tier),
		recommendationText(rep.tier, a), "investment", data)
}

func correlationRecord(in Input) models.InsightRecord {
	r := in.Correlation
	index := indexCorrelation
	if r.Degenerate {
		index = indexDegenerate
	}
	degenerate := 0.0
	if r.Degenerate {
		degenerate = 1
	}
	data := map[string]float64{
		"correlation_coefficient": models.RoundTo(r.Coefficient, 3),
		"p_value":                 r.PValue,
		"sample_size":             float64(r.SampleSize),
		"effect_size":             models.RoundTo(r.EffectSize, 3),
		"confidence":              float64(in.Confidence),
		"degenerate":              degenerate,
	}
	if r.HasPValue() {
		data["p_value"] = models.RoundTo(r.PValue, 4)
	}
	return in.record(models.CategoryCorrelationAnalysis, "", "", index, correlationText(r), "correlation", data)
}

func insufficientRecord(in Input) models.InsightRecord {
	rec := in.record(models.CategoryCorrelationAnalysis, "", "", indexInsufficient,
		insufficientText(in.Correlation.SampleSize), "correlation", map[string]float64{
			"sample_size":     float64(in.Correlation.SampleSize),
			"min_sample_size": 2,
			"confidence":      0,
		})
	rec.Confidence = 0
	return rec
}

func dataSliceURL(industry string, filters models.FilterSignature, metric string) string {
	q := url.Values{}
	if industry != "" {
		q.Set("industry", industry)
	} else if industries := filters.Industries(); len(industries) > 0 {
		q.Set("industry", strings.Join(industries, ","))
	}
	if year, ok := filters.Year(); ok {
		q.Set("year", strconv.Itoa(year))
	}
	if metric != "" {
		q.Set("metric", metric)
	}
	if len(q) == 0 {
		return dataSlicePath
	}
	return dataSlicePath + "?" + q.Encode()
}
