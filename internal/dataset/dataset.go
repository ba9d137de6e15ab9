// Package dataset loads the adoption and cloud-usage observations and joins
// them into aligned records for the insights engine. It provides an in-memory
// source fed from CSV files and a PostgreSQL-backed source.
package dataset

import (
	"cmp"
	"slices"

	"pulse/internal/insights/models"
)

// Year bounds accepted for observations.
const (
	MinYear = 2020
	MaxYear = 2030
)

// Usage score weights. AI/ML services weigh more than general compute and storage.
const (
	weightBedrock   = 0.3
	weightSageMaker = 0.3
	weightLambda    = 0.2
	weightS3        = 0.1
	weightEC2       = 0.1
)

// AdoptionRow is one row of the GenAI adoption dataset.
type AdoptionRow struct {
	Industry           string
	Year               int
	AdoptionRate       float64
	UseCasesCount      int
	InvestmentMillions float64
}

// UsageRow is one row of the cloud service usage dataset. Every usage is a
// share in [0, 1].
type UsageRow struct {
	Industry  string
	Year      int
	Bedrock   float64
	SageMaker float64
	Lambda    float64
	S3        float64
	EC2       float64
}

// Score is the weighted usage composite, rounded to 3 decimals.
func (u UsageRow) Score() float64 {
	score := u.Bedrock*weightBedrock +
		u.SageMaker*weightSageMaker +
		u.Lambda*weightLambda +
		u.S3*weightS3 +
		u.EC2*weightEC2
	return models.RoundTo(score, 3)
}

type rowKey struct {
	industry string
	year     int
}

// Join aligns adoption and usage rows on (industry, year). Rows present in
// only one dataset are dropped; for duplicate keys the last row wins. The
// result is ordered by industry then year.
func Join(adoption []AdoptionRow, usage []UsageRow) []models.AlignedRecord {
	scores := make(map[rowKey]float64, len(usage))
	for _, u := range usage {
		scores[rowKey{u.Industry, u.Year}] = u.Score()
	}

	byKey := make(map[rowKey]models.AlignedRecord, len(adoption))
	for _, a := range adoption {
		k := rowKey{a.Industry, a.Year}
		score, ok := scores[k]
		if !ok {
			continue
		}
		byKey[k] = models.AlignedRecord{
			Industry:           a.Industry,
			Year:               a.Year,
			AdoptionRate:       a.AdoptionRate,
			UsageScore:         score,
			InvestmentMillions: a.InvestmentMillions,
			UseCasesCount:      a.UseCasesCount,
		}
	}

	out := make([]models.AlignedRecord, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	SortRecords(out)
	return out
}

// SortRecords orders records by industry then year.
func SortRecords(records []models.AlignedRecord) {
	slices.SortFunc(records, func(a, b models.AlignedRecord) int {
		if c := cmp.Compare(a.Industry, b.Industry); c != 0 {
			return c
		}
		return cmp.Compare(a.Year, b.Year)
	})
}
