package memory

import (
	"context"
	"sync"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// MetricsStore is an in-memory implementation of storage.MetricsStore.
type MetricsStore struct {
	mu  sync.RWMutex
	agg domain.MetricsAggregate
}

// NewMetricsStore creates a new in-memory metrics store.
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{}
}

var _ storage.MetricsStore = (*MetricsStore)(nil)

// Get retrieves the aggregate. Returns a zero aggregate if never written.
func (s *MetricsStore) Get(_ context.Context) (*domain.MetricsAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.agg
	return &c, nil
}

// Put replaces the aggregate.
func (s *MetricsStore) Put(_ context.Context, m *domain.MetricsAggregate) error {
	if m == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.agg = *m
	return nil
}
