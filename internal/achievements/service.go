// Package achievements evaluates the fixed gamification catalog against
// gateway activity and records unlocks.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/events"
	"parkchain-gateway/internal/storage"
)

// TierSource supplies the persisted tier level.
type TierSource interface {
	CurrentTier(ctx context.Context) (domain.Tier, error)
}

// Service checks and persists achievement unlocks.
type Service struct {
	metricsStore storage.MetricsStore
	txStore      storage.TransactionStore
	batchStore   storage.BatchStore
	unlockStore  storage.AchievementStore
	tiers        TierSource
	bus          *events.Bus
	logger       *log.Logger
	now          func() time.Time
}

// Options configures an achievements Service.
type Options struct {
	MetricsStore     storage.MetricsStore
	TransactionStore storage.TransactionStore
	BatchStore       storage.BatchStore
	UnlockStore      storage.AchievementStore
	Tiers            TierSource
	Bus              *events.Bus
	Logger           *log.Logger
	Now              func() time.Time
}

// NewService creates an achievements service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[achievements] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		metricsStore: opts.MetricsStore,
		txStore:      opts.TransactionStore,
		batchStore:   opts.BatchStore,
		unlockStore:  opts.UnlockStore,
		tiers:        opts.Tiers,
		bus:          opts.Bus,
		logger:       logger,
		now:          now,
	}
}

// progress is the measured state all requirement checks read from.
type progress struct {
	transactionCount int64
	totalSavings     float64
	tierLevel        int
	batchCount       int64
	largestBatch     int
	bestPerfectDay   int64
}

// CheckAll evaluates every catalog entry and unlocks the ones newly
// earned. Already-unlocked entries are skipped at the store level via
// the duplicate-key error. Returns the achievements unlocked this call.
func (s *Service) CheckAll(ctx context.Context) ([]domain.Achievement, error) {
	p, err := s.measure(ctx)
	if err != nil {
		return nil, err
	}

	var unlocked []domain.Achievement
	for _, a := range domain.AllAchievements() {
		if !met(a.Requirement, p) {
			continue
		}
		err := s.unlockStore.Insert(ctx, &domain.AchievementUnlock{
			ID:         a.ID,
			UnlockedAt: s.now().UTC(),
			Points:     a.Points,
		})
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return unlocked, fmt.Errorf("record unlock %s: %w", a.ID, err)
		}

		unlocked = append(unlocked, a)
		s.logger.Printf("achievement unlocked: %s (+%d points)", a.ID, a.Points)
		if s.bus != nil {
			s.bus.Publish(events.TypeAchievementUnlocked, a)
		}
	}
	return unlocked, nil
}

// measure gathers the current progress snapshot. The perfect-day check
// is the only one that scans the transaction log.
func (s *Service) measure(ctx context.Context) (*progress, error) {
	m, err := s.metricsStore.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	tier, err := s.tiers.CurrentTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier: %w", err)
	}

	p := &progress{
		transactionCount: m.TotalTransactions,
		totalSavings:     m.TotalSavings,
		tierLevel:        tier.Level,
	}

	batches, err := s.batchStore.GetRecent(ctx, int(^uint(0)>>1))
	if err != nil {
		return nil, fmt.Errorf("load batch history: %w", err)
	}
	p.batchCount = int64(len(batches))
	for _, b := range batches {
		if len(b.Items) > p.largestBatch {
			p.largestBatch = len(b.Items)
		}
	}

	best, err := s.bestPerfectDay(ctx)
	if err != nil {
		return nil, err
	}
	p.bestPerfectDay = best
	return p, nil
}

// bestPerfectDay returns the transaction count of the busiest UTC day
// in which every resolved transaction succeeded and nothing failed or
// stayed pending. Days with any non-success count zero.
func (s *Service) bestPerfectDay(ctx context.Context) (int64, error) {
	all, err := s.txStore.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan transactions: %w", err)
	}

	type dayStat struct {
		total   int64
		success int64
	}
	days := map[time.Time]*dayStat{}
	for _, t := range all {
		day := t.Timestamp.UTC().Truncate(24 * time.Hour)
		st, ok := days[day]
		if !ok {
			st = &dayStat{}
			days[day] = st
		}
		st.total++
		if t.Status == domain.StatusSuccess {
			st.success++
		}
	}

	var best int64
	for _, st := range days {
		if st.success == st.total && st.total > best {
			best = st.total
		}
	}
	return best, nil
}

func met(req domain.AchievementRequirement, p *progress) bool {
	switch req.Type {
	case domain.RequireTransactionCount:
		return float64(p.transactionCount) >= req.Value
	case domain.RequireTotalSavings:
		return p.totalSavings >= req.Value
	case domain.RequireTierLevel:
		return float64(p.tierLevel) >= req.Value
	case domain.RequireBatchCount:
		return float64(p.batchCount) >= req.Value
	case domain.RequireBatchSize:
		return float64(p.largestBatch) >= req.Value
	case domain.RequirePerfectDay:
		return float64(p.bestPerfectDay) >= req.Value
	default:
		return false
	}
}

// Unlocked returns the unlocked catalog entries with their unlock times,
// ordered by the store's id order.
func (s *Service) Unlocked(ctx context.Context) ([]UnlockedAchievement, error) {
	records, err := s.unlockStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}

	out := make([]UnlockedAchievement, 0, len(records))
	for _, r := range records {
		a, ok := domain.AchievementByID(r.ID)
		if !ok {
			continue
		}
		out = append(out, UnlockedAchievement{Achievement: a, UnlockedAt: r.UnlockedAt})
	}
	return out, nil
}

// UnlockedAchievement pairs a catalog entry with its unlock time.
type UnlockedAchievement struct {
	domain.Achievement
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Locked returns the catalog entries not yet unlocked.
func (s *Service) Locked(ctx context.Context) ([]domain.Achievement, error) {
	records, err := s.unlockStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}
	have := make(map[string]bool, len(records))
	for _, r := range records {
		have[r.ID] = true
	}

	var out []domain.Achievement
	for _, a := range domain.AllAchievements() {
		if !have[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// TotalPoints sums the points of all unlocked achievements.
func (s *Service) TotalPoints(ctx context.Context) (int, error) {
	records, err := s.unlockStore.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unlocks: %w", err)
	}
	total := 0
	for _, r := range records {
		total += r.Points
	}
	return total, nil
}
