package stats

import "fmt"

// InsufficientDataError reports that fewer than two aligned records were
// available, so no coefficient could be computed.
type InsufficientDataError struct {
	SampleSize int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for correlation: %d record(s), need at least 2", e.SampleSize)
}
