package memory

import (
	"context"
	"sync"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	list []*domain.Transaction // most-recent-first
	ids  map[string]struct{}
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{ids: make(map[string]struct{})}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if the id exists.
func (s *TransactionStore) Insert(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	c := cloneTransaction(t)
	s.list = append([]*domain.Transaction{c}, s.list...)
	s.ids[t.ID] = struct{}{}
	return nil
}

// GetAll retrieves all transactions, most-recent-first.
func (s *TransactionStore) GetAll(_ context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, len(s.list))
	for i, t := range s.list {
		out[i] = cloneTransaction(t)
	}
	return out, nil
}

// GetByTimeRange retrieves transactions with timestamp in [start, end).
func (s *TransactionStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range s.list {
		if !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			out = append(out, cloneTransaction(t))
		}
	}
	return out, nil
}

// Clear removes all transactions.
func (s *TransactionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = nil
	s.ids = make(map[string]struct{})
	return nil
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
