// Package ledger maintains the gateway transaction log and its rolling
// aggregate metrics. The log is append-only; the aggregate is updated
// incrementally on every insert so reads never rescan the log.
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/events"
	"parkchain-gateway/internal/idhash"
	"parkchain-gateway/internal/storage"
)

// Service records transactions and serves metrics over them.
type Service struct {
	txStore       storage.TransactionStore
	metricsStore  storage.MetricsStore
	activityStore storage.ActivityStore
	bus           *events.Bus
	logger        *log.Logger
	now           func() time.Time
}

// Options configures a ledger Service.
type Options struct {
	TransactionStore storage.TransactionStore
	MetricsStore     storage.MetricsStore
	ActivityStore    storage.ActivityStore

	// Bus is optional; when set, recorded transactions are published.
	Bus *events.Bus

	Logger *log.Logger

	// Now is the clock, defaulting to time.Now. Injected by tests.
	Now func() time.Time
}

// NewService creates a ledger service.
func NewService(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ledger] ", log.LstdFlags)
	}
	return &Service{
		txStore:       opts.TransactionStore,
		metricsStore:  opts.MetricsStore,
		activityStore: opts.ActivityStore,
		bus:           opts.Bus,
		logger:        logger,
		now:           now,
	}
}

// TransactionInput is a partial transaction description. Zero values are
// filled with defaults on insert.
type TransactionInput struct {
	Signature          string
	Amount             float64
	Status             string // defaults to pending
	DeliveryMethod     string // defaults to gateway
	GatewayUsed        *bool  // defaults to true
	ConfirmationTimeMs int64
	JitoTipRefunded    float64
	GatewayFee         float64 // defaults to domain.DefaultGatewayFee
	Metadata           map[string]string

	// Timestamp overrides the record timestamp when non-zero. Used by the
	// demo seeder to backfill history.
	Timestamp time.Time
}

// AddTransaction fills defaults, assigns an id and timestamp, appends the
// record and updates the aggregate. The stored record is returned.
//
// No validation is applied to Amount sign or Status beyond the pending
// default; the log faithfully records whatever the caller claims happened.
func (s *Service) AddTransaction(ctx context.Context, input TransactionInput) (*domain.Transaction, error) {
	ts := input.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}

	t := &domain.Transaction{
		ID:                 idhash.NewTransactionID(ts),
		Timestamp:          ts,
		Signature:          input.Signature,
		Amount:             input.Amount,
		Status:             input.Status,
		DeliveryMethod:     input.DeliveryMethod,
		GatewayUsed:        input.GatewayUsed == nil || *input.GatewayUsed,
		ConfirmationTimeMs: input.ConfirmationTimeMs,
		JitoTipRefunded:    input.JitoTipRefunded,
		GatewayFee:         input.GatewayFee,
		Metadata:           input.Metadata,
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	if t.DeliveryMethod == "" {
		t.DeliveryMethod = domain.DeliveryGateway
	}
	if t.GatewayFee == 0 {
		t.GatewayFee = domain.DefaultGatewayFee
	}
	if t.Signature == "" {
		t.Signature = idhash.ComputeSignature(t.ID, ts.UnixMilli())
	}

	if err := s.txStore.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := s.applyToMetrics(ctx, t); err != nil {
		return nil, err
	}

	if s.activityStore != nil {
		point := &domain.ActivityPoint{
			Timestamp:      t.Timestamp,
			Status:         t.Status,
			Amount:         t.Amount,
			Savings:        t.Savings(),
			DeliveryMethod: t.DeliveryMethod,
		}
		if err := s.activityStore.Insert(ctx, point); err != nil {
			return nil, fmt.Errorf("insert activity point: %w", err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.TypeTransactionRecorded, t)
	}
	return t, nil
}

// applyToMetrics folds one new record into the aggregate.
func (s *Service) applyToMetrics(ctx context.Context, t *domain.Transaction) error {
	m, err := s.metricsStore.Get(ctx)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}

	m.TotalTransactions++
	switch t.Status {
	case domain.StatusSuccess:
		m.SuccessfulTransactions++
		m.SuccessfulVolume += t.Amount
		if t.ConfirmationTimeMs > 0 {
			m.ConfirmTimeSumMs += float64(t.ConfirmationTimeMs)
			m.ConfirmTimeSamples++
		}
	case domain.StatusFailed:
		m.FailedTransactions++
	}

	m.TotalJitoTipsRefunded += t.JitoTipRefunded
	if t.GatewayUsed {
		m.TotalGatewayFees += t.GatewayFee
	}
	m.TotalSavings = m.TotalJitoTipsRefunded - m.TotalGatewayFees

	if err := s.metricsStore.Put(ctx, m); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// GetTransactions returns all records, most-recent-first. Callers slice
// for pagination.
func (s *Service) GetTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	return s.txStore.GetAll(ctx)
}

// Filter narrows GetFilteredTransactions results. Nil fields match all.
type Filter struct {
	Status         string
	DeliveryMethod string
	GatewayUsed    *bool
	From           time.Time
	To             time.Time
}

// GetFilteredTransactions returns records matching the filter,
// most-recent-first.
func (s *Service) GetFilteredTransactions(ctx context.Context, f Filter) ([]*domain.Transaction, error) {
	all, err := s.txStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []*domain.Transaction
	for _, t := range all {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.DeliveryMethod != "" && t.DeliveryMethod != f.DeliveryMethod {
			continue
		}
		if f.GatewayUsed != nil && t.GatewayUsed != *f.GatewayUsed {
			continue
		}
		if !f.From.IsZero() && t.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Timestamp.After(f.To) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// MetricsSnapshot is the aggregate plus derived presentation fields.
type MetricsSnapshot struct {
	domain.MetricsAggregate

	AverageConfirmationTimeMs float64 `json:"averageConfirmationTime"`

	// SuccessRate is the percentage formatted to two decimals, matching
	// the historical wire shape.
	SuccessRate string `json:"successRate"`
}

// GetMetrics returns the current aggregate snapshot.
func (s *Service) GetMetrics(ctx context.Context) (*MetricsSnapshot, error) {
	m, err := s.metricsStore.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	return &MetricsSnapshot{
		MetricsAggregate:          *m,
		AverageConfirmationTimeMs: m.AverageConfirmationTimeMs(),
		SuccessRate:               fmt.Sprintf("%.2f", m.SuccessRatePct()),
	}, nil
}

// GetMetricsOverTime buckets activity into UTC day-aligned buckets over
// the trailing days window. Days without transactions report zeros.
func (s *Service) GetMetricsOverTime(ctx context.Context, days int) ([]*domain.DayBucket, error) {
	if days <= 0 {
		days = 7
	}
	if s.activityStore == nil {
		return nil, fmt.Errorf("no activity store configured")
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	filled, err := s.activityStore.DayBuckets(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query day buckets: %w", err)
	}

	out := make([]*domain.DayBucket, 0, days)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if b, ok := filled[day]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, &domain.DayBucket{Date: day})
	}
	return out, nil
}

// DeliveryMethodDistribution counts records per delivery method.
func (s *Service) DeliveryMethodDistribution(ctx context.Context) (map[string]int64, error) {
	all, err := s.txStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	dist := make(map[string]int64)
	for _, t := range all {
		method := t.DeliveryMethod
		if method == "" {
			method = "unknown"
		}
		dist[method]++
	}
	return dist, nil
}

// ClearAll wipes the log, the aggregate and the activity sink. Irreversible.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.txStore.Clear(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if err := s.metricsStore.Put(ctx, &domain.MetricsAggregate{}); err != nil {
		return fmt.Errorf("reset metrics: %w", err)
	}
	if s.activityStore != nil {
		if err := s.activityStore.Clear(ctx); err != nil {
			return fmt.Errorf("clear activity: %w", err)
		}
	}
	s.logger.Printf("cleared transaction log and metrics")
	return nil
}
