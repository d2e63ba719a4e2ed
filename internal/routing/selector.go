// Package routing scores the fixed delivery channels against network
// conditions, tier gating and recorded performance, and picks the best
// route for a transaction.
package routing

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/events"
	"parkchain-gateway/internal/storage"
)

// EMA smoothing factor for channel performance updates.
const emaAlpha = 0.1

// Routing history is an in-memory ring capped at this many records.
const historyCap = 100

// TierSource supplies the persisted tier for channel gating and scoring.
type TierSource interface {
	CurrentTier(ctx context.Context) (domain.Tier, error)
}

// PerformanceSampler supplies recent network throughput samples. The
// production implementation is synthetic; tests inject fixed values.
type PerformanceSampler interface {
	// RecentTxPerSlot returns recent transactions-per-slot samples.
	RecentTxPerSlot(ctx context.Context, n int) ([]float64, error)
}

// Selector routes transactions over the fixed channel set.
type Selector struct {
	perfStore storage.ChannelPerformanceStore
	tiers     TierSource
	sampler   PerformanceSampler
	bus       *events.Bus
	logger    *log.Logger
	now       func() time.Time

	mu         sync.RWMutex
	conditions domain.Condition
	perf       map[string]*domain.ChannelPerformance
	history    []HistoryRecord
	monitoring bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Options configures a Selector.
type Options struct {
	PerformanceStore storage.ChannelPerformanceStore
	Tiers            TierSource
	Sampler          PerformanceSampler
	Bus              *events.Bus
	Logger           *log.Logger
	Now              func() time.Time
}

// NewSelector creates a selector. The performance map is loaded from the
// store; if the store is empty the default seed values are persisted.
func NewSelector(ctx context.Context, opts Options) (*Selector, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[routing] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Selector{
		perfStore:  opts.PerformanceStore,
		tiers:      opts.Tiers,
		sampler:    opts.Sampler,
		bus:        opts.Bus,
		logger:     logger,
		now:        now,
		conditions: domain.ConditionNormal,
	}

	perf, err := s.perfStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load channel performance: %w", err)
	}
	if len(perf) == 0 {
		perf = domain.DefaultChannelPerformance()
		if err := s.perfStore.Replace(ctx, perf); err != nil {
			return nil, fmt.Errorf("seed channel performance: %w", err)
		}
		logger.Printf("seeded default channel performance")
	}
	// Backfill channels missing from a partially populated store.
	for id, def := range domain.DefaultChannelPerformance() {
		if _, ok := perf[id]; !ok {
			perf[id] = def
		}
	}
	s.perf = perf
	return s, nil
}

// Conditions returns the last observed network condition.
func (s *Selector) Conditions() domain.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conditions
}

// SetConditions overrides the observed condition. Used when monitoring is
// disabled and by tests.
func (s *Selector) SetConditions(c domain.Condition) {
	s.mu.Lock()
	s.conditions = c
	s.mu.Unlock()
}

// MonitorNetworkConditions samples recent throughput and rebuckets the
// network condition. Sampling errors fall back to normal.
func (s *Selector) MonitorNetworkConditions(ctx context.Context) domain.Condition {
	if s.sampler == nil {
		return s.Conditions()
	}

	samples, err := s.sampler.RecentTxPerSlot(ctx, 10)
	if err != nil || len(samples) == 0 {
		if err != nil {
			s.logger.Printf("network sampling failed: %v", err)
		}
		s.SetConditions(domain.ConditionNormal)
		return domain.ConditionNormal
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}
	avgTxPerSlot := sum / float64(len(samples))

	var cond domain.Condition
	switch {
	case avgTxPerSlot < 1000:
		cond = domain.ConditionLow
	case avgTxPerSlot < 2000:
		cond = domain.ConditionNormal
	case avgTxPerSlot < 3000:
		cond = domain.ConditionHigh
	default:
		cond = domain.ConditionCritical
	}

	s.mu.Lock()
	changed := cond != s.conditions
	s.conditions = cond
	s.mu.Unlock()

	s.logger.Printf("network conditions: %s (%.0f tx/slot)", cond, avgTxPerSlot)
	if changed && s.bus != nil {
		s.bus.Publish(events.TypeConditionsChanged, map[string]any{
			"conditions": cond,
			"txPerSlot":  avgTxPerSlot,
		})
	}
	return cond
}

// StartMonitoring launches a goroutine that re-samples conditions every
// interval until StopMonitoring or ctx cancellation.
func (s *Selector) StartMonitoring(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.monitoring {
		s.mu.Unlock()
		s.logger.Printf("monitoring already started")
		return
	}
	s.monitoring = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.MonitorNetworkConditions(ctx)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.MonitorNetworkConditions(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Printf("network monitoring started (every %s)", interval)
}

// StopMonitoring stops the monitoring goroutine and waits for it to exit.
func (s *Selector) StopMonitoring() {
	s.mu.Lock()
	if !s.monitoring {
		s.mu.Unlock()
		return
	}
	s.monitoring = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Printf("network monitoring stopped")
}

// Priorities accepted by SelectRoute.
const (
	PrioritizeBalanced = "balanced"
	PrioritizeSpeed    = "speed"
	PrioritizeCost     = "cost"
)

var speedBonus = map[string]float64{
	domain.SpeedVeryFast:  30,
	domain.SpeedFast:      20,
	domain.SpeedOptimized: 25,
	domain.SpeedMedium:    10,
}

// SelectOptions tunes one SelectRoute call. Zero value means current
// observed conditions with balanced prioritization.
type SelectOptions struct {
	Conditions domain.Condition
	Prioritize string
}

// ScoredRoute is one channel with its computed score.
type ScoredRoute struct {
	Channel string         `json:"channel"`
	Score   float64        `json:"score"`
	Info    domain.Channel `json:"info"`
}

// Route is the outcome of a SelectRoute call.
type Route struct {
	Primary        ScoredRoute      `json:"primary"`
	Alternatives   []ScoredRoute    `json:"alternatives"`
	Conditions     domain.Condition `json:"conditions"`
	Recommendation string           `json:"recommendation"`
}

// SelectRoute scores the channels the persisted tier may use and returns
// the winner plus up to two alternatives.
func (s *Selector) SelectRoute(ctx context.Context, opts SelectOptions) (*Route, error) {
	conditions := opts.Conditions
	if conditions == "" {
		conditions = s.Conditions()
	}
	prioritize := opts.Prioritize
	if prioritize == "" {
		prioritize = PrioritizeBalanced
	}

	tier, err := s.tiers.CurrentTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier: %w", err)
	}

	available := []string{domain.ChannelRPC, domain.ChannelGateway}
	if tier.Level >= 1 {
		available = append(available, domain.ChannelJito)
	}
	if tier.Level >= 2 {
		available = append(available, domain.ChannelTriton)
	}

	s.mu.RLock()
	scored := make([]ScoredRoute, 0, len(available))
	for _, id := range available {
		info, ok := domain.ChannelByID(id)
		if !ok {
			continue
		}
		score := s.scoreLocked(info, conditions, tier)
		switch prioritize {
		case PrioritizeSpeed:
			score += speedBonus[info.Speed]
		case PrioritizeCost:
			score += (1 / info.BaseCost) * 5
		}
		scored = append(scored, ScoredRoute{Channel: id, Score: score, Info: info})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	alternatives := scored[1:]
	if len(alternatives) > 2 {
		alternatives = alternatives[:2]
	}

	route := &Route{
		Primary:      scored[0],
		Alternatives: alternatives,
		Conditions:   conditions,
	}
	route.Recommendation = recommendation(route.Primary, conditions, tier)
	return route, nil
}

// scoreLocked computes the balanced score for one channel. Caller holds
// at least the read lock.
func (s *Selector) scoreLocked(info domain.Channel, conditions domain.Condition, tier domain.Tier) float64 {
	score := info.Reliability * 50

	if perf, ok := s.perf[info.ID]; ok {
		score += perf.SuccessRate * 30
		score += math.Max(0, 20-perf.AvgConfirmTimeMs/1000)
	}

	if info.SuitedFor(conditions) {
		score += 20
	}

	if tier.Level >= 2 && (info.ID == domain.ChannelTriton || info.ID == domain.ChannelGateway) {
		score += 15
	}

	score -= info.BaseCost * 10000
	return score
}

func recommendation(route ScoredRoute, conditions domain.Condition, tier domain.Tier) string {
	var msg string
	switch conditions {
	case domain.ConditionCritical:
		msg = fmt.Sprintf("Network is congested. Using %s for fastest delivery.", route.Info.Name)
	case domain.ConditionHigh:
		msg = fmt.Sprintf("Network is busy. %s offers best balance.", route.Info.Name)
	case domain.ConditionLow:
		msg = fmt.Sprintf("Network is clear. %s provides cost-effective delivery.", route.Info.Name)
	default:
		msg = fmt.Sprintf("%s recommended for current conditions.", route.Info.Name)
	}
	if tier.Level < 2 && route.Channel == domain.ChannelGateway {
		msg += " Upgrade to Premium for more routing options."
	}
	return msg
}

// HistoryRecord is one routed delivery kept in the in-memory ring.
type HistoryRecord struct {
	Timestamp          time.Time        `json:"timestamp"`
	Channel            string           `json:"channel"`
	Success            bool             `json:"success"`
	ConfirmationTimeMs int64            `json:"confirmationTime"`
	Signature          string           `json:"signature"`
	Conditions         domain.Condition `json:"conditions"`
}

// RoutingResult reports one delivery outcome back to the selector.
type RoutingResult struct {
	Channel            string
	Success            bool
	ConfirmationTimeMs int64
	Signature          string
}

// RecordRoutingResult folds a delivery outcome into the channel's EMA
// performance, persists it and prepends a history record. Unknown
// channels still land in the history but update no performance.
func (s *Selector) RecordRoutingResult(ctx context.Context, result RoutingResult) error {
	s.mu.Lock()
	perf, ok := s.perf[result.Channel]
	if ok {
		perf.TotalTxs++
		outcome := 0.0
		if result.Success {
			outcome = 1.0
		}
		perf.SuccessRate = emaAlpha*outcome + (1-emaAlpha)*perf.SuccessRate
		if result.Success && result.ConfirmationTimeMs > 0 {
			perf.AvgConfirmTimeMs = emaAlpha*float64(result.ConfirmationTimeMs) + (1-emaAlpha)*perf.AvgConfirmTimeMs
		}
	}
	var snapshot *domain.ChannelPerformance
	if ok {
		c := *perf
		snapshot = &c
	}

	s.history = append([]HistoryRecord{{
		Timestamp:          s.now().UTC(),
		Channel:            result.Channel,
		Success:            result.Success,
		ConfirmationTimeMs: result.ConfirmationTimeMs,
		Signature:          result.Signature,
		Conditions:         s.conditions,
	}}, s.history...)
	if len(s.history) > historyCap {
		s.history = s.history[:historyCap]
	}
	s.mu.Unlock()

	if snapshot != nil {
		if err := s.perfStore.Put(ctx, result.Channel, snapshot); err != nil {
			return fmt.Errorf("persist channel performance: %w", err)
		}
	}
	return nil
}

// Stats summarizes the routing history ring and the live performance map.
type Stats struct {
	TotalRouted          int                                   `json:"totalRouted"`
	ChannelDistribution  map[string]int                        `json:"channelDistribution"`
	AverageConfirmTimeMs float64                               `json:"averageConfirmTime"`
	SuccessRate          string                                `json:"successRate"`
	NetworkConditions    domain.Condition                      `json:"networkConditions"`
	ChannelPerformance   map[string]*domain.ChannelPerformance `json:"channelPerformance"`
}

// RoutingStats returns statistics over the history ring, not over all
// time: the ring holds at most the last 100 routed deliveries.
func (s *Selector) RoutingStats() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ChannelDistribution: map[string]int{},
		SuccessRate:         "0.00",
		NetworkConditions:   s.conditions,
		ChannelPerformance:  copyPerf(s.perf),
	}

	total := len(s.history)
	stats.TotalRouted = total
	if total == 0 {
		return stats
	}

	var successful int
	var confirmSum float64
	var confirmSamples int
	for _, r := range s.history {
		stats.ChannelDistribution[r.Channel]++
		if r.Success {
			successful++
			if r.ConfirmationTimeMs > 0 {
				confirmSum += float64(r.ConfirmationTimeMs)
				confirmSamples++
			}
		}
	}

	stats.SuccessRate = fmt.Sprintf("%.2f", float64(successful)/float64(total)*100)
	if confirmSamples > 0 {
		stats.AverageConfirmTimeMs = confirmSum / float64(confirmSamples)
	}
	return stats
}

// History returns a copy of the routing history ring, most-recent-first.
func (s *Selector) History() []HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

// BulkStrategy recommends how to deliver a group of transactions.
type BulkStrategy struct {
	Recommended     string   `json:"recommended"` // batch or sequential
	Channels        []string `json:"channels"`
	EstimatedTimeMs float64  `json:"estimatedTime"`
	EstimatedCost   float64  `json:"estimatedCost"`
}

// BulkRoutingStrategy recommends batch delivery when the persisted tier's
// batch cap covers the whole group, otherwise sequential delivery over
// the best single route.
func (s *Selector) BulkRoutingStrategy(ctx context.Context, transactionCount int) (*BulkStrategy, error) {
	tier, err := s.tiers.CurrentTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier: %w", err)
	}

	if tier.Benefits.MaxBatchSize >= transactionCount {
		return &BulkStrategy{
			Recommended:     "batch",
			Channels:        []string{domain.ChannelGateway},
			EstimatedTimeMs: 5000,
			EstimatedCost:   domain.DefaultGatewayFee + float64(transactionCount)*domain.BatchItemOverhead,
		}, nil
	}

	route, err := s.SelectRoute(ctx, SelectOptions{})
	if err != nil {
		return nil, err
	}

	perChannelTime := 5000.0
	s.mu.RLock()
	if perf, ok := s.perf[route.Primary.Channel]; ok && perf.AvgConfirmTimeMs > 0 {
		perChannelTime = perf.AvgConfirmTimeMs
	}
	s.mu.RUnlock()

	return &BulkStrategy{
		Recommended:     "sequential",
		Channels:        []string{route.Primary.Channel},
		EstimatedTimeMs: float64(transactionCount) * perChannelTime,
		EstimatedCost:   float64(transactionCount) * route.Primary.Info.BaseCost,
	}, nil
}

// ResetPerformanceData restores the seed performance map, clears the
// history ring and persists the reset.
func (s *Selector) ResetPerformanceData(ctx context.Context) error {
	defaults := domain.DefaultChannelPerformance()

	s.mu.Lock()
	s.perf = defaults
	s.history = nil
	s.mu.Unlock()

	if err := s.perfStore.Replace(ctx, copyPerf(defaults)); err != nil {
		return fmt.Errorf("persist performance reset: %w", err)
	}
	s.logger.Printf("channel performance reset to defaults")
	return nil
}

func copyPerf(m map[string]*domain.ChannelPerformance) map[string]*domain.ChannelPerformance {
	out := make(map[string]*domain.ChannelPerformance, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}
