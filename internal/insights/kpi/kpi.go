// Package kpi computes the dashboard summary scalars for a filtered record set.
package kpi

import (
	"slices"
	"time"

	"pulse/internal/insights/models"
)

// Aggregate builds the KPI snapshot.
//
// filtered holds the records matching the full filter signature and drives
// every scalar except growth. series holds the records matching the industry
// filter only, so year-over-year growth is always measured against the prior
// year even when a year filter narrows the view.
func Aggregate(filtered, series []models.AlignedRecord, filters models.FilterSignature, now time.Time) models.KPISnapshot {
	snap := models.KPISnapshot{
		ComputedAt:     now,
		FiltersApplied: filters,
	}
	if len(filtered) == 0 {
		snap.Empty = true
	} else {
		var adoptionSum float64
		for _, r := range filtered {
			adoptionSum += r.AdoptionRate
			snap.TotalInvestment += r.InvestmentMillions
		}
		snap.AvgAdoption = models.RoundTo(adoptionSum/float64(len(filtered)), 3)
	}

	means := meanAdoptionByIndustry(filtered)
	snap.TotalIndustries = len(means)
	snap.TopIndustry = topIndustry(means)

	year, hasYear := filters.Year()
	snap.FastestGrowingIndustry = fastestGrowing(series, year, hasYear)
	return snap
}

type running struct {
	sum   float64
	count int
}

func (r running) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

func meanAdoptionByIndustry(records []models.AlignedRecord) map[string]float64 {
	acc := make(map[string]running)
	for _, r := range records {
		cur := acc[r.Industry]
		cur.sum += r.AdoptionRate
		cur.count++
		acc[r.Industry] = cur
	}
	out := make(map[string]float64, len(acc))
	for industry, cur := range acc {
		out[industry] = cur.mean()
	}
	return out
}

func topIndustry(means map[string]float64) models.TopIndustry {
	var top models.TopIndustry
	found := false
	for _, industry := range sortedKeys(means) {
		if !found || means[industry] > top.AdoptionRate {
			top = models.TopIndustry{Industry: industry, AdoptionRate: means[industry]}
			found = true
		}
	}
	top.AdoptionRate = models.RoundTo(top.AdoptionRate, 3)
	return top
}

// fastestGrowing picks the industry with the largest adoption gain. With a year
// filter the gain is a[year]-a[year-1]; without one it is the mean of every
// consecutive-year delta. Industries with no qualifying pair are skipped.
func fastestGrowing(series []models.AlignedRecord, year int, hasYear bool) models.GrowingIndustry {
	byIndustry := adoptionByYear(series)

	var best models.GrowingIndustry
	found := false
	for _, industry := range sortedKeys(byIndustry) {
		years := byIndustry[industry]
		var (
			growth float64
			ok     bool
		)
		if hasYear {
			growth, ok = deltaAt(years, year)
		} else {
			growth, ok = meanConsecutiveDelta(years)
		}
		if !ok {
			continue
		}
		if !found || growth > best.GrowthRate {
			best = models.GrowingIndustry{Industry: industry, GrowthRate: growth}
			found = true
		}
	}
	best.GrowthRate = models.RoundTo(best.GrowthRate, 3)
	return best
}

// adoptionByYear averages duplicate (industry, year) observations.
func adoptionByYear(records []models.AlignedRecord) map[string]map[int]float64 {
	acc := make(map[string]map[int]running)
	for _, r := range records {
		years, ok := acc[r.Industry]
		if !ok {
			years = make(map[int]running)
			acc[r.Industry] = years
		}
		cur := years[r.Year]
		cur.sum += r.AdoptionRate
		cur.count++
		years[r.Year] = cur
	}
	out := make(map[string]map[int]float64, len(acc))
	for industry, years := range acc {
		m := make(map[int]float64, len(years))
		for y, cur := range years {
			m[y] = cur.mean()
		}
		out[industry] = m
	}
	return out
}

func deltaAt(years map[int]float64, year int) (float64, bool) {
	cur, ok := years[year]
	if !ok {
		return 0, false
	}
	prev, ok := years[year-1]
	if !ok {
		return 0, false
	}
	return cur - prev, true
}

func meanConsecutiveDelta(years map[int]float64) (float64, bool) {
	var (
		sum   float64
		pairs int
	)
	for _, y := range sortedKeys(years) {
		if d, ok := deltaAt(years, y); ok {
			sum += d
			pairs++
		}
	}
	if pairs == 0 {
		return 0, false
	}
	return sum / float64(pairs), true
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
