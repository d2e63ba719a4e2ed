package clickhouse

import (
	"context"
	"fmt"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
// One row per transaction; day bucketing happens server-side.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert adds one activity point.
func (s *ActivityStore) Insert(ctx context.Context, p *domain.ActivityPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO gateway_activity (ts, status, amount, savings, delivery_method)
		VALUES (?, ?, ?, ?, ?)
	`, p.Timestamp.UTC(), p.Status, p.Amount, p.Savings, p.DeliveryMethod)
	if err != nil {
		return fmt.Errorf("insert activity point: %w", err)
	}
	return nil
}

// DayBuckets aggregates points into UTC day buckets over [from, to).
func (s *ActivityStore) DayBuckets(ctx context.Context, from, to time.Time) (map[time.Time]*domain.DayBucket, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			toStartOfDay(ts) AS day,
			count() AS total,
			countIf(status = 'success') AS successes,
			sum(savings) AS savings
		FROM gateway_activity
		WHERE ts >= ? AND ts < ?
		GROUP BY day
		ORDER BY day
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query day buckets: %w", err)
	}
	defer rows.Close()

	out := make(map[time.Time]*domain.DayBucket)
	for rows.Next() {
		var day time.Time
		var total, successes uint64
		var savings float64

		if err := rows.Scan(&day, &total, &successes, &savings); err != nil {
			return nil, fmt.Errorf("scan day bucket: %w", err)
		}

		day = day.UTC()
		b := &domain.DayBucket{
			Date:    day,
			Count:   int64(total),
			Savings: savings,
		}
		if total > 0 {
			b.SuccessRatePct = float64(successes) / float64(total) * 100
		}
		out[day] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day buckets: %w", err)
	}
	return out, nil
}

// Clear removes all activity points.
func (s *ActivityStore) Clear(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE gateway_activity`); err != nil {
		return fmt.Errorf("clear activity: %w", err)
	}
	return nil
}
