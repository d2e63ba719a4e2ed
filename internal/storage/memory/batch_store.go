package memory

import (
	"context"
	"sync"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// BatchStore is an in-memory implementation of storage.BatchStore.
type BatchStore struct {
	mu   sync.RWMutex
	list []*domain.Batch // most-recent-first
	ids  map[string]struct{}
}

// NewBatchStore creates a new in-memory batch store.
func NewBatchStore() *BatchStore {
	return &BatchStore{ids: make(map[string]struct{})}
}

var _ storage.BatchStore = (*BatchStore)(nil)

// Append adds a completed batch. Returns ErrDuplicateKey if the id exists.
func (s *BatchStore) Append(_ context.Context, b *domain.Batch) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[b.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.list = append([]*domain.Batch{b.Clone()}, s.list...)
	s.ids[b.ID] = struct{}{}
	return nil
}

// GetRecent retrieves up to limit batches, most-recent-first.
func (s *BatchStore) GetRecent(_ context.Context, limit int) ([]*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.list)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.Batch, n)
	for i := 0; i < n; i++ {
		out[i] = s.list[i].Clone()
	}
	return out, nil
}

// Count returns the number of persisted batches.
func (s *BatchStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.list)), nil
}

// Clear removes all batch history.
func (s *BatchStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = nil
	s.ids = make(map[string]struct{})
	return nil
}
