package memory

import (
	"context"
	"sync"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// ChannelPerformanceStore is an in-memory implementation of
// storage.ChannelPerformanceStore.
type ChannelPerformanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ChannelPerformance
}

// NewChannelPerformanceStore creates a new in-memory performance store.
func NewChannelPerformanceStore() *ChannelPerformanceStore {
	return &ChannelPerformanceStore{data: make(map[string]*domain.ChannelPerformance)}
}

var _ storage.ChannelPerformanceStore = (*ChannelPerformanceStore)(nil)

// GetAll retrieves the full performance map.
func (s *ChannelPerformanceStore) GetAll(_ context.Context) (map[string]*domain.ChannelPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.ChannelPerformance, len(s.data))
	for id, p := range s.data {
		c := *p
		out[id] = &c
	}
	return out, nil
}

// Put upserts one channel's performance record.
func (s *ChannelPerformanceStore) Put(_ context.Context, channelID string, perf *domain.ChannelPerformance) error {
	if channelID == "" || perf == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *perf
	s.data[channelID] = &c
	return nil
}

// Replace swaps the entire map.
func (s *ChannelPerformanceStore) Replace(_ context.Context, m map[string]*domain.ChannelPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.ChannelPerformance, len(m))
	for id, p := range m {
		c := *p
		s.data[id] = &c
	}
	return nil
}
