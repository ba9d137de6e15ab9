// Package stats computes the adoption/usage correlation statistics.
// Every function here is pure and safe to call from any goroutine.
package stats

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"pulse/internal/insights/models"
)

// varianceEpsilon treats float noise around zero variance as zero.
const varianceEpsilon = 1e-12

// Compute correlates adoption_rate (x) with usage_score (y) over records.
//
// With fewer than two records the returned result has a NaN coefficient and the
// p-value sentinel, and the error is an *InsufficientDataError. Zero variance on
// either axis yields coefficient 0 with Degenerate set; that is not an error.
func Compute(records []models.AlignedRecord, now time.Time) (models.CorrelationResult, error) {
	n := len(records)
	result := models.CorrelationResult{
		SampleSize: n,
		PValue:     models.PValueInsufficient,
		ComputedAt: now,
	}
	if n < 2 {
		result.Coefficient = math.NaN()
		return result, &InsufficientDataError{SampleSize: n}
	}

	x, y := pairs(records)
	result.EffectSize = cohensD(x, y)

	if stat.Variance(x, nil) <= varianceEpsilon || stat.Variance(y, nil) <= varianceEpsilon {
		result.Degenerate = true
		result.Coefficient = 0
		if n >= 3 {
			result.PValue = 1
		}
		return result, nil
	}

	r := clamp(stat.Correlation(x, y, nil), -1, 1)
	result.Coefficient = r
	result.PValue = pValue(r, n)
	return result, nil
}

func pairs(records []models.AlignedRecord) (x, y []float64) {
	x = make([]float64, len(records))
	y = make([]float64, len(records))
	for i, r := range records {
		x[i] = r.AdoptionRate
		y[i] = r.UsageScore
	}
	return x, y
}

// pValue is the two-tailed probability of |t| under Student's t with n-2
// degrees of freedom, where t = r*sqrt((n-2)/(1-r^2)).
func pValue(r float64, n int) float64 {
	if n < 3 {
		return models.PValueInsufficient
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clamp(2*dist.CDF(-t), 0, 1)
}

// cohensD splits the pairs at the median adoption rate and returns the
// standardized difference in mean usage between the upper and lower halves.
func cohensD(x, y []float64) float64 {
	median := medianOf(x)
	var upper, lower []float64
	for i := range x {
		if x[i] > median {
			upper = append(upper, y[i])
		} else {
			lower = append(lower, y[i])
		}
	}

	n1, n2 := len(upper), len(lower)
	if n1 == 0 || n2 == 0 || n1+n2 <= 2 {
		return 0
	}

	var v1, v2 float64
	if n1 > 1 {
		v1 = stat.Variance(upper, nil)
	}
	if n2 > 1 {
		v2 = stat.Variance(lower, nil)
	}

	pooled := math.Sqrt((float64(n1-1)*v1 + float64(n2-1)*v2) / float64(n1+n2-2))
	if pooled <= math.Sqrt(varianceEpsilon) {
		return 0
	}
	return (stat.Mean(upper, nil) - stat.Mean(lower, nil)) / pooled
}

func medianOf(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
