package storage

import (
	"context"
	"time"

	"parkchain-gateway/internal/domain"
)

// TransactionStore provides access to the gateway transaction log.
// The log is append-only: records are never mutated after insert and are
// only removed by Clear.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, t *domain.Transaction) error

	// GetAll retrieves all transactions, most-recent-first.
	GetAll(ctx context.Context) ([]*domain.Transaction, error)

	// GetByTimeRange retrieves transactions with timestamp in [start, end),
	// most-recent-first.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Transaction, error)

	// Clear removes all transactions. Irreversible.
	Clear(ctx context.Context) error
}

// MetricsStore persists the singleton metrics aggregate.
type MetricsStore interface {
	// Get retrieves the aggregate. Returns a zero aggregate if none persisted.
	Get(ctx context.Context) (*domain.MetricsAggregate, error)

	// Put replaces the aggregate.
	Put(ctx context.Context, m *domain.MetricsAggregate) error
}

// TierStore persists the user's current tier id.
type TierStore interface {
	// Get retrieves the persisted tier id. Returns domain.TierFree if unset.
	Get(ctx context.Context) (string, error)

	// Put replaces the persisted tier id.
	Put(ctx context.Context, tierID string) error
}

// BatchStore persists completed batches. Active batches live in memory
// inside the coordinator; only terminal batches reach this store.
type BatchStore interface {
	// Append adds a completed batch. Returns ErrDuplicateKey if the id exists.
	Append(ctx context.Context, b *domain.Batch) error

	// GetRecent retrieves up to limit batches, most-recent-first.
	GetRecent(ctx context.Context, limit int) ([]*domain.Batch, error)

	// Count returns the number of persisted batches.
	Count(ctx context.Context) (int64, error)

	// Clear removes all batch history.
	Clear(ctx context.Context) error
}

// ChannelPerformanceStore persists the per-channel EMA performance map.
type ChannelPerformanceStore interface {
	// GetAll retrieves the full performance map. Missing channels are
	// absent from the result, not zero-filled.
	GetAll(ctx context.Context) (map[string]*domain.ChannelPerformance, error)

	// Put upserts one channel's performance record.
	Put(ctx context.Context, channelID string, perf *domain.ChannelPerformance) error

	// Replace swaps the entire map, dropping channels not present in m.
	Replace(ctx context.Context, m map[string]*domain.ChannelPerformance) error
}

// AchievementStore persists achievement unlock records.
type AchievementStore interface {
	// Insert records an unlock. Returns ErrDuplicateKey if already unlocked.
	Insert(ctx context.Context, u *domain.AchievementUnlock) error

	// GetAll retrieves all unlock records.
	GetAll(ctx context.Context) ([]*domain.AchievementUnlock, error)
}

// ActivityStore is the analytics sink for time-bucketed queries over the
// transaction log. Backed by ClickHouse in production, memory in tests.
type ActivityStore interface {
	// Insert adds one activity point.
	Insert(ctx context.Context, p *domain.ActivityPoint) error

	// DayBuckets aggregates points into UTC day buckets over [from, to).
	// Only days with activity are returned; callers zero-fill gaps.
	DayBuckets(ctx context.Context, from, to time.Time) (map[time.Time]*domain.DayBucket, error)

	// Clear removes all activity points.
	Clear(ctx context.Context) error
}
