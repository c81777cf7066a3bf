package cache

import (
	"context"
	"sync"
)

// MemoryCache stores rendered reports keyed by park and parameters.
type MemoryCache struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{reports: make(map[string][]byte)}
}

// GetReport retrieves a cached report.
func (m *MemoryCache) GetReport(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.reports[key]
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	cacheLookups.WithLabelValues("hit").Inc()
	return append([]byte(nil), value...), true, nil
}

// PutReport stores a report payload.
func (m *MemoryCache) PutReport(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[key] = append([]byte(nil), payload...)
	return nil
}
