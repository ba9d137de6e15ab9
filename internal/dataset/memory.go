package dataset

import (
	"context"
	"slices"
	"sync"

	"pulse/internal/insights/models"
)

// InMemoryStore serves aligned records from memory. Safe for concurrent use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.AlignedRecord
}

func NewInMemoryStore(records ...models.AlignedRecord) *InMemoryStore {
	s := &InMemoryStore{}
	s.Replace(records)
	return s
}

// Replace swaps the full record set. Callers holding results keep their copies.
func (s *InMemoryStore) Replace(records []models.AlignedRecord) {
	next := slices.Clone(records)
	SortRecords(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
}

// AlignedRecords returns a copy of the records matching filters, ordered by
// industry then year.
func (s *InMemoryStore) AlignedRecords(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AlignedRecord, 0, len(s.records))
	for _, r := range s.records {
		if filters.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
