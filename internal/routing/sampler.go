package routing

import (
	"context"
	"math/rand"
	"sync"
)

// SyntheticSampler generates plausible throughput samples around a
// configurable center so the condition monitor has something to observe
// without a real chain connection.
type SyntheticSampler struct {
	mu     sync.Mutex
	rng    *rand.Rand
	center float64
	spread float64
}

// NewSyntheticSampler creates a sampler centered on center tx/slot with
// uniform jitter of +/- spread.
func NewSyntheticSampler(seed int64, center, spread float64) *SyntheticSampler {
	return &SyntheticSampler{
		rng:    rand.New(rand.NewSource(seed)),
		center: center,
		spread: spread,
	}
}

// SetCenter moves the sampling center, shifting the conditions the
// monitor will observe.
func (s *SyntheticSampler) SetCenter(center float64) {
	s.mu.Lock()
	s.center = center
	s.mu.Unlock()
}

// RecentTxPerSlot returns n samples drawn uniformly from
// [center-spread, center+spread], floored at zero.
func (s *SyntheticSampler) RecentTxPerSlot(_ context.Context, n int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, n)
	for i := range out {
		v := s.center + (s.rng.Float64()*2-1)*s.spread
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}

var _ PerformanceSampler = (*SyntheticSampler)(nil)
