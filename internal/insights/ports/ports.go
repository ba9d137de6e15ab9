// Package ports defines the interfaces the insights engine consumes.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"pulse/internal/insights/models"
)

// RecordSource supplies validated aligned records. Implementations apply the
// filter signature themselves and must be safe for concurrent use.
type RecordSource interface {
	// AlignedRecords returns every record matching filters. No match is an
	// empty slice, not an error.
	AlignedRecords(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error)
}
