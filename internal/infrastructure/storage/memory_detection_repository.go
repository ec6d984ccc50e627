package storage

import (
	"context"
	"sync"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// DefaultHistoryCapacity сколько записей держит in-memory история.
const DefaultHistoryCapacity = 500

// MemoryDetectionRepository кольцевой буфер последних детекций.
type MemoryDetectionRepository struct {
	mu      sync.RWMutex
	records []entity.DetectionRecord
	next    int
	full    bool
}

// NewMemoryDetectionRepository создаёт буфер на capacity записей.
func NewMemoryDetectionRepository(capacity int) *MemoryDetectionRepository {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &MemoryDetectionRepository{records: make([]entity.DetectionRecord, capacity)}
}

func (r *MemoryDetectionRepository) Save(ctx context.Context, record entity.DetectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = record
	r.next = (r.next + 1) % len(r.records)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Recent возвращает до limit записей, новые первыми.
func (r *MemoryDetectionRepository) Recent(ctx context.Context, limit int) ([]entity.DetectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.records)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]entity.DetectionRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out, nil
}

// Проверка реализации интерфейса
var _ port.DetectionRepository = (*MemoryDetectionRepository)(nil)
