package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if the id exists.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO gateway_transactions (
			id, ts, signature, amount, status, delivery_method, gateway_used,
			confirmation_time_ms, jito_tip_refunded, gateway_fee, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.Timestamp, t.Signature, t.Amount, t.Status, t.DeliveryMethod,
		t.GatewayUsed, t.ConfirmationTimeMs, t.JitoTipRefunded, t.GatewayFee, metadata,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	id, ts, signature, amount, status, delivery_method, gateway_used,
	confirmation_time_ms, jito_tip_refunded, gateway_fee, metadata
`

// GetAll retrieves all transactions, most-recent-first.
func (s *TransactionStore) GetAll(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions ORDER BY ts DESC, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByTimeRange retrieves transactions with timestamp in [start, end).
func (s *TransactionStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM gateway_transactions
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query transactions by time range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Clear removes all transactions.
func (s *TransactionStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM gateway_transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	return nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var metadata []byte

		err := rows.Scan(
			&t.ID, &t.Timestamp, &t.Signature, &t.Amount, &t.Status, &t.DeliveryMethod,
			&t.GatewayUsed, &t.ConfirmationTimeMs, &t.JitoTipRefunded, &t.GatewayFee, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
