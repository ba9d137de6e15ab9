package composer

import (
	"cmp"
	"slices"

	"pulse/internal/insights/models"
)

const (
	leadingThreshold  = 0.6
	emergingThreshold = 0.2

	adoptionWeight   = 0.4
	investmentWeight = 0.3
	usageWeight      = 0.3
)

// IndustryAggregate is the per-industry rollup the composer works from.
type IndustryAggregate struct {
	Industry        string
	Tier            models.Tier
	AvgAdoption     float64
	AvgUsage        float64
	TotalInvestment float64
	UseCases        int
	Observations    int
	// AdoptionByYear holds the mean adoption rate of each observed year.
	AdoptionByYear map[int]float64
}

// YoYGrowth returns the adoption delta of the latest pair of consecutive
// years, and whether such a pair exists.
func (a IndustryAggregate) YoYGrowth() (growth float64, fromYear, toYear int, ok bool) {
	years := make([]int, 0, len(a.AdoptionByYear))
	for y := range a.AdoptionByYear {
		years = append(years, y)
	}
	slices.Sort(years)
	for i := len(years) - 1; i > 0; i-- {
		if years[i]-years[i-1] == 1 {
			return a.AdoptionByYear[years[i]] - a.AdoptionByYear[years[i-1]], years[i-1], years[i], true
		}
	}
	return 0, 0, 0, false
}

// InvestmentPerUseCase is total investment divided by use cases, 0 without use cases.
func (a IndustryAggregate) InvestmentPerUseCase() float64 {
	if a.UseCases == 0 {
		return 0
	}
	return a.TotalInvestment / float64(a.UseCases)
}

// TierFor classifies an adoption rate: above 0.6 is leading, 0.2 to 0.6 is
// emerging, below 0.2 is early-stage.
func TierFor(adoption float64) models.Tier {
	switch {
	case adoption > leadingThreshold:
		return models.TierLeading
	case adoption >= emergingThreshold:
		return models.TierEmerging
	default:
		return models.TierEarlyStage
	}
}

// AggregateByIndustry rolls records up per industry, sorted by industry name.
func AggregateByIndustry(records []models.AlignedRecord) []IndustryAggregate {
	type yearAcc struct {
		sum   float64
		count int
	}
	type acc struct {
		agg      IndustryAggregate
		adoption float64
		usage    float64
		years    map[int]*yearAcc
	}

	byIndustry := make(map[string]*acc)
	for _, r := range records {
		a, ok := byIndustry[r.Industry]
		if !ok {
			a = &acc{
				agg:   IndustryAggregate{Industry: r.Industry},
				years: make(map[int]*yearAcc),
			}
			byIndustry[r.Industry] = a
		}
		a.adoption += r.AdoptionRate
		a.usage += r.UsageScore
		a.agg.TotalInvestment += r.InvestmentMillions
		a.agg.UseCases += r.UseCasesCount
		a.agg.Observations++

		y, ok := a.years[r.Year]
		if !ok {
			y = &yearAcc{}
			a.years[r.Year] = y
		}
		y.sum += r.AdoptionRate
		y.count++
	}

	out := make([]IndustryAggregate, 0, len(byIndustry))
	for _, a := range byIndustry {
		agg := a.agg
		n := float64(agg.Observations)
		agg.AvgAdoption = a.adoption / n
		agg.AvgUsage = a.usage / n
		agg.Tier = TierFor(agg.AvgAdoption)
		agg.AdoptionByYear = make(map[int]float64, len(a.years))
		for year, y := range a.years {
			agg.AdoptionByYear[year] = y.sum / float64(y.count)
		}
		out = append(out, agg)
	}
	slices.SortFunc(out, func(x, y IndustryAggregate) int {
		return cmp.Compare(x.Industry, y.Industry)
	})
	return out
}

// Rank orders industries by composite score, highest first, ties by name:
//
//	composite = 0.4*avg_adoption + 0.3*investment/max_investment + 0.3*avg_usage
func Rank(aggregates []IndustryAggregate) []models.IndustryRanking {
	var maxInvestment float64
	for _, a := range aggregates {
		maxInvestment = max(maxInvestment, a.TotalInvestment)
	}

	type scored struct {
		agg       IndustryAggregate
		composite float64
	}
	rows := make([]scored, 0, len(aggregates))
	for _, a := range aggregates {
		var normalized float64
		if maxInvestment > 0 {
			normalized = a.TotalInvestment / maxInvestment
		}
		rows = append(rows, scored{
			agg:       a,
			composite: adoptionWeight*a.AvgAdoption + investmentWeight*normalized + usageWeight*a.AvgUsage,
		})
	}
	slices.SortFunc(rows, func(x, y scored) int {
		if c := cmp.Compare(y.composite, x.composite); c != 0 {
			return c
		}
		return cmp.Compare(x.agg.Industry, y.agg.Industry)
	})

	out := make([]models.IndustryRanking, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.IndustryRanking{
			Industry:                row.agg.Industry,
			Tier:                    row.agg.Tier,
			AvgAdoptionRate:         models.RoundTo(row.agg.AvgAdoption, 3),
			TotalInvestmentMillions: models.RoundTo(row.agg.TotalInvestment, 3),
			AvgUsageScore:           models.RoundTo(row.agg.AvgUsage, 3),
			CompositeScore:          models.RoundTo(row.composite, 3),
		})
	}
	return out
}
