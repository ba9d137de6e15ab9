// Package confidence folds significance, sample adequacy and effect magnitude
// into one bounded score.
package confidence

import (
	"math"

	"pulse/internal/insights/models"
)

const (
	// MaxScore caps every confidence score.
	MaxScore = 0.95
	// FullSampleSize is the sample size at which sample adequacy saturates.
	FullSampleSize = 100

	highThreshold   = 0.8
	mediumThreshold = 0.5
)

// Score derives the confidence for a correlation result:
//
//	min(0.95, (1 - p) * min(n/100, 1) * (1 + d/2))
//
// Negative factors are clamped to 0. Degenerate results, undefined
// coefficients and missing p-values score 0.
func Score(result models.CorrelationResult) models.ConfidenceScore {
	if result.Degenerate || !result.Defined() || !result.HasPValue() {
		return 0
	}

	significance := nonNegative(1 - result.PValue)
	adequacy := nonNegative(math.Min(float64(result.SampleSize)/FullSampleSize, 1))
	effect := nonNegative(1 + result.EffectSize/2)

	score := math.Min(MaxScore, significance*adequacy*effect)
	if math.IsNaN(score) {
		return 0
	}
	return models.ConfidenceScore(math.Round(score*1000) / 1000)
}

// Badge buckets a score for display: High >= 0.8, Medium >= 0.5, Low otherwise.
func Badge(score models.ConfidenceScore) models.Badge {
	switch {
	case score >= highThreshold:
		return models.BadgeHigh
	case score >= mediumThreshold:
		return models.BadgeMedium
	default:
		return models.BadgeLow
	}
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
