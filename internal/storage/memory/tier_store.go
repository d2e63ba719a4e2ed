package memory

import (
	"context"
	"sync"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// TierStore is an in-memory implementation of storage.TierStore.
type TierStore struct {
	mu     sync.RWMutex
	tierID string
}

// NewTierStore creates a new in-memory tier store.
func NewTierStore() *TierStore {
	return &TierStore{}
}

var _ storage.TierStore = (*TierStore)(nil)

// Get retrieves the persisted tier id. Returns domain.TierFree if unset.
func (s *TierStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tierID == "" {
		return domain.TierFree, nil
	}
	return s.tierID, nil
}

// Put replaces the persisted tier id.
func (s *TierStore) Put(_ context.Context, tierID string) error {
	if tierID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tierID = tierID
	return nil
}
