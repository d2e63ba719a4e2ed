package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// BatchStore implements storage.BatchStore using PostgreSQL. Batch items
// are stored as a JSONB document; history is append-only.
type BatchStore struct {
	pool *Pool
}

// NewBatchStore creates a new BatchStore.
func NewBatchStore(pool *Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BatchStore = (*BatchStore)(nil)

// Append adds a completed batch. Returns ErrDuplicateKey if the id exists.
func (s *BatchStore) Append(ctx context.Context, b *domain.Batch) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}

	items, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("marshal batch items: %w", err)
	}

	query := `
		INSERT INTO batch_history (
			id, status, tier_id, priority, atomic, max_size,
			created_at, completed_at, execution_time_ms, estimated_savings, items
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		b.ID, b.Status, b.TierID, b.Priority, b.Atomic, b.MaxSize,
		b.CreatedAt, b.CompletedAt, b.ExecutionTimeMs, b.EstimatedSavings, items,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetRecent retrieves up to limit batches, most-recent-first.
func (s *BatchStore) GetRecent(ctx context.Context, limit int) ([]*domain.Batch, error) {
	query := `
		SELECT id, status, tier_id, priority, atomic, max_size,
		       created_at, completed_at, execution_time_ms, estimated_savings, items
		FROM batch_history
		ORDER BY completed_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []*domain.Batch
	for rows.Next() {
		var b domain.Batch
		var items []byte

		err := rows.Scan(
			&b.ID, &b.Status, &b.TierID, &b.Priority, &b.Atomic, &b.MaxSize,
			&b.CreatedAt, &b.CompletedAt, &b.ExecutionTimeMs, &b.EstimatedSavings, &items,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}

		if len(items) > 0 {
			if err := json.Unmarshal(items, &b.Items); err != nil {
				return nil, fmt.Errorf("unmarshal batch items: %w", err)
			}
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

// Count returns the number of persisted batches.
func (s *BatchStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batch_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return n, nil
}

// Clear removes all batch history.
func (s *BatchStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM batch_history`); err != nil {
		return fmt.Errorf("clear batches: %w", err)
	}
	return nil
}
