package postgres

import (
	"context"
	"fmt"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// MetricsStore implements storage.MetricsStore using PostgreSQL.
// The aggregate lives in a single row guarded by a constant key.
type MetricsStore struct {
	pool *Pool
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(pool *Pool) *MetricsStore {
	return &MetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricsStore = (*MetricsStore)(nil)

// Get retrieves the aggregate. Returns a zero aggregate if none persisted.
func (s *MetricsStore) Get(ctx context.Context) (*domain.MetricsAggregate, error) {
	query := `
		SELECT total_transactions, successful_transactions, failed_transactions,
		       total_jito_tips_refunded, total_gateway_fees, total_savings,
		       successful_volume, confirm_time_sum_ms, confirm_time_samples
		FROM gateway_metrics WHERE singleton
	`

	var m domain.MetricsAggregate
	err := s.pool.QueryRow(ctx, query).Scan(
		&m.TotalTransactions, &m.SuccessfulTransactions, &m.FailedTransactions,
		&m.TotalJitoTipsRefunded, &m.TotalGatewayFees, &m.TotalSavings,
		&m.SuccessfulVolume, &m.ConfirmTimeSumMs, &m.ConfirmTimeSamples,
	)
	if err != nil {
		if isNotFoundError(err) {
			return &domain.MetricsAggregate{}, nil
		}
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	return &m, nil
}

// Put replaces the aggregate.
func (s *MetricsStore) Put(ctx context.Context, m *domain.MetricsAggregate) error {
	if m == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO gateway_metrics (
			singleton, total_transactions, successful_transactions, failed_transactions,
			total_jito_tips_refunded, total_gateway_fees, total_savings,
			successful_volume, confirm_time_sum_ms, confirm_time_samples
		) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (singleton) DO UPDATE SET
			total_transactions = EXCLUDED.total_transactions,
			successful_transactions = EXCLUDED.successful_transactions,
			failed_transactions = EXCLUDED.failed_transactions,
			total_jito_tips_refunded = EXCLUDED.total_jito_tips_refunded,
			total_gateway_fees = EXCLUDED.total_gateway_fees,
			total_savings = EXCLUDED.total_savings,
			successful_volume = EXCLUDED.successful_volume,
			confirm_time_sum_ms = EXCLUDED.confirm_time_sum_ms,
			confirm_time_samples = EXCLUDED.confirm_time_samples
	`

	_, err := s.pool.Exec(ctx, query,
		m.TotalTransactions, m.SuccessfulTransactions, m.FailedTransactions,
		m.TotalJitoTipsRefunded, m.TotalGatewayFees, m.TotalSavings,
		m.SuccessfulVolume, m.ConfirmTimeSumMs, m.ConfirmTimeSamples,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}
