package event

import (
	"context"
	"sync"

	"jan-server/services/vision-api/internal/domain/capture"
)

const defaultMemoryCapacity = 10000

// InMemoryRepository keeps the newest records in a bounded slice. It backs
// the service when no database DSN is configured.
type InMemoryRepository struct {
	mu       sync.RWMutex
	records  []capture.Record
	capacity int
}

// NewInMemoryRepository creates a repository holding at most capacity records.
func NewInMemoryRepository(capacity int) *InMemoryRepository {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &InMemoryRepository{capacity: capacity}
}

// Insert appends a record, dropping the oldest when full.
func (r *InMemoryRepository) Insert(ctx context.Context, record capture.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
	if over := len(r.records) - r.capacity; over > 0 {
		r.records = append([]capture.Record(nil), r.records[over:]...)
	}
	return nil
}

// List returns the newest records first.
func (r *InMemoryRepository) List(ctx context.Context, filter capture.Filter) ([]capture.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]capture.Record, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
		if filter.DeviceID != "" && r.records[i].DeviceID != filter.DeviceID {
			continue
		}
		result = append(result, r.records[i])
	}
	return result, nil
}
