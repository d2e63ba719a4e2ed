// Package reporting renders transaction log exports as JSON and CSV.
package reporting

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/ledger"
)

// Snapshot is a full export of the transaction log with its metrics.
type Snapshot struct {
	Transactions []*domain.Transaction   `json:"transactions"`
	Metrics      *ledger.MetricsSnapshot `json:"metrics"`
	ExportedAt   time.Time               `json:"exportedAt"`
}

// Exporter builds export snapshots from the ledger.
type Exporter struct {
	ledger *ledger.Service
	now    func() time.Time
}

// NewExporter creates an exporter. now defaults to time.Now.
func NewExporter(l *ledger.Service, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{ledger: l, now: now}
}

// Export captures the current log and metrics.
func (e *Exporter) Export(ctx context.Context) (*Snapshot, error) {
	txs, err := e.ledger.GetTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	metrics, err := e.ledger.GetMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("export metrics: %w", err)
	}
	return &Snapshot{
		Transactions: txs,
		Metrics:      metrics,
		ExportedAt:   e.now().UTC(),
	}, nil
}

// RenderJSON renders the snapshot as indented JSON.
func RenderJSON(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

var csvHeader = []string{
	"ID", "Timestamp", "Signature", "Amount", "Status",
	"Delivery Method", "Gateway Used", "Confirmation Time",
	"Jito Tip Refunded", "Gateway Fee",
}

// RenderCSV renders the snapshot's transactions as CSV, one row per
// transaction in log order.
func RenderCSV(s *Snapshot) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, t := range s.Transactions {
		row := []string{
			t.ID,
			t.Timestamp.UTC().Format(time.RFC3339),
			t.Signature,
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			t.Status,
			t.DeliveryMethod,
			strconv.FormatBool(t.GatewayUsed),
			strconv.FormatInt(t.ConfirmationTimeMs, 10),
			strconv.FormatFloat(t.JitoTipRefunded, 'f', -1, 64),
			strconv.FormatFloat(t.GatewayFee, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
