package postgres

import (
	"context"
	"fmt"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// ChannelPerformanceStore implements storage.ChannelPerformanceStore
// using PostgreSQL, one row per channel id.
type ChannelPerformanceStore struct {
	pool *Pool
}

// NewChannelPerformanceStore creates a new ChannelPerformanceStore.
func NewChannelPerformanceStore(pool *Pool) *ChannelPerformanceStore {
	return &ChannelPerformanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChannelPerformanceStore = (*ChannelPerformanceStore)(nil)

// GetAll retrieves the full performance map.
func (s *ChannelPerformanceStore) GetAll(ctx context.Context) (map[string]*domain.ChannelPerformance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, success_rate, avg_confirm_time_ms, total_txs FROM channel_performance`)
	if err != nil {
		return nil, fmt.Errorf("query channel performance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.ChannelPerformance)
	for rows.Next() {
		var id string
		var p domain.ChannelPerformance
		if err := rows.Scan(&id, &p.SuccessRate, &p.AvgConfirmTimeMs, &p.TotalTxs); err != nil {
			return nil, fmt.Errorf("scan channel performance: %w", err)
		}
		out[id] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel performance: %w", err)
	}
	return out, nil
}

// Put upserts one channel's performance record.
func (s *ChannelPerformanceStore) Put(ctx context.Context, channelID string, perf *domain.ChannelPerformance) error {
	if channelID == "" || perf == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO channel_performance (channel_id, success_rate, avg_confirm_time_ms, total_txs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id) DO UPDATE SET
			success_rate = EXCLUDED.success_rate,
			avg_confirm_time_ms = EXCLUDED.avg_confirm_time_ms,
			total_txs = EXCLUDED.total_txs
	`
	if _, err := s.pool.Exec(ctx, query, channelID, perf.SuccessRate, perf.AvgConfirmTimeMs, perf.TotalTxs); err != nil {
		return fmt.Errorf("upsert channel performance: %w", err)
	}
	return nil
}

// Replace swaps the entire map inside one transaction.
func (s *ChannelPerformanceStore) Replace(ctx context.Context, m map[string]*domain.ChannelPerformance) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM channel_performance`); err != nil {
		return fmt.Errorf("clear channel performance: %w", err)
	}

	for id, p := range m {
		_, err := tx.Exec(ctx,
			`INSERT INTO channel_performance (channel_id, success_rate, avg_confirm_time_ms, total_txs)
			 VALUES ($1, $2, $3, $4)`,
			id, p.SuccessRate, p.AvgConfirmTimeMs, p.TotalTxs)
		if err != nil {
			return fmt.Errorf("insert channel performance %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
