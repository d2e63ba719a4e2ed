package memory

import (
	"context"
	"sort"
	"sync"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// AchievementStore is an in-memory implementation of storage.AchievementStore.
type AchievementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AchievementUnlock
}

// NewAchievementStore creates a new in-memory achievement store.
func NewAchievementStore() *AchievementStore {
	return &AchievementStore{data: make(map[string]*domain.AchievementUnlock)}
}

var _ storage.AchievementStore = (*AchievementStore)(nil)

// Insert records an unlock. Returns ErrDuplicateKey if already unlocked.
func (s *AchievementStore) Insert(_ context.Context, u *domain.AchievementUnlock) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.ID]; exists {
		return storage.ErrDuplicateKey
	}

	c := *u
	s.data[u.ID] = &c
	return nil
}

// GetAll retrieves all unlock records sorted by id for deterministic output.
func (s *AchievementStore) GetAll(_ context.Context) ([]*domain.AchievementUnlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AchievementUnlock, 0, len(s.data))
	for _, u := range s.data {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
