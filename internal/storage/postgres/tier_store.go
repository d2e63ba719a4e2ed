package postgres

import (
	"context"
	"fmt"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// TierStore implements storage.TierStore using PostgreSQL.
type TierStore struct {
	pool *Pool
}

// NewTierStore creates a new TierStore.
func NewTierStore(pool *Pool) *TierStore {
	return &TierStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TierStore = (*TierStore)(nil)

// Get retrieves the persisted tier id. Returns domain.TierFree if unset.
func (s *TierStore) Get(ctx context.Context) (string, error) {
	var tierID string
	err := s.pool.QueryRow(ctx, `SELECT tier_id FROM user_tier WHERE singleton`).Scan(&tierID)
	if err != nil {
		if isNotFoundError(err) {
			return domain.TierFree, nil
		}
		return "", fmt.Errorf("query tier: %w", err)
	}
	return tierID, nil
}

// Put replaces the persisted tier id.
func (s *TierStore) Put(ctx context.Context, tierID string) error {
	if tierID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO user_tier (singleton, tier_id) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET tier_id = EXCLUDED.tier_id
	`
	if _, err := s.pool.Exec(ctx, query, tierID); err != nil {
		return fmt.Errorf("upsert tier: %w", err)
	}
	return nil
}
