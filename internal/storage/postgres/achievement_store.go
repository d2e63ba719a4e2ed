package postgres

import (
	"context"
	"fmt"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// AchievementStore implements storage.AchievementStore using PostgreSQL.
type AchievementStore struct {
	pool *Pool
}

// NewAchievementStore creates a new AchievementStore.
func NewAchievementStore(pool *Pool) *AchievementStore {
	return &AchievementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AchievementStore = (*AchievementStore)(nil)

// Insert records an unlock. Returns ErrDuplicateKey if already unlocked.
func (s *AchievementStore) Insert(ctx context.Context, u *domain.AchievementUnlock) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO achievements (id, unlocked_at, points) VALUES ($1, $2, $3)`,
		u.ID, u.UnlockedAt, u.Points)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

// GetAll retrieves all unlock records sorted by id.
func (s *AchievementStore) GetAll(ctx context.Context) ([]*domain.AchievementUnlock, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, unlocked_at, points FROM achievements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []*domain.AchievementUnlock
	for rows.Next() {
		var u domain.AchievementUnlock
		if err := rows.Scan(&u.ID, &u.UnlockedAt, &u.Points); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return out, nil
}
