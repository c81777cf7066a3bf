package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/example/taxipark/internal/taxipark/domain"
)

// ErrNotFound indicates missing parks.
var ErrNotFound = errors.New("taxi park not found")

// MemoryRepository keeps registered parks in process memory. Parks are copied on the way in and
// never mutated afterwards, so callers may query them concurrently.
type MemoryRepository struct {
	mu    sync.RWMutex
	parks map[uuid.UUID]domain.TaxiPark
	order []uuid.UUID
}

// NewMemoryRepository constructs an empty memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{parks: make(map[uuid.UUID]domain.TaxiPark)}
}

// CreatePark stores a copy of the park under a fresh id.
func (m *MemoryRepository) CreatePark(_ context.Context, park domain.TaxiPark) (uuid.UUID, error) {
	stored := park.Clone()
	id := uuid.New()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parks[id] = stored
	m.order = append(m.order, id)
	return id, nil
}

// GetPark retrieves a park.
func (m *MemoryRepository) GetPark(_ context.Context, id uuid.UUID) (domain.TaxiPark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	park, ok := m.parks[id]
	if !ok {
		return domain.TaxiPark{}, ErrNotFound
	}
	return park, nil
}

// ListParks returns registered ids in registration order.
func (m *MemoryRepository) ListParks(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uuid.UUID(nil), m.order...), nil
}
