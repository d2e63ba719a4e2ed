package memory

import (
	"context"
	"sync"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	points []*domain.ActivityPoint
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert adds one activity point.
func (s *ActivityStore) Insert(_ context.Context, p *domain.ActivityPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.points = append(s.points, &c)
	return nil
}

// DayBuckets aggregates points into UTC day buckets over [from, to).
func (s *ActivityStore) DayBuckets(_ context.Context, from, to time.Time) (map[time.Time]*domain.DayBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[time.Time]*domain.DayBucket)
	successes := make(map[time.Time]int64)

	for _, p := range s.points {
		ts := p.Timestamp.UTC()
		if ts.Before(from) || !ts.Before(to) {
			continue
		}
		day := ts.Truncate(24 * time.Hour)

		b, ok := buckets[day]
		if !ok {
			b = &domain.DayBucket{Date: day}
			buckets[day] = b
		}
		b.Count++
		b.Savings += p.Savings
		if p.Status == domain.StatusSuccess {
			successes[day]++
		}
	}

	for day, b := range buckets {
		if b.Count > 0 {
			b.SuccessRatePct = float64(successes[day]) / float64(b.Count) * 100
		}
	}
	return buckets, nil
}

// Clear removes all activity points.
func (s *ActivityStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = nil
	return nil
}
