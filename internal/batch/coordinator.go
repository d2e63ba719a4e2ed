// Package batch groups transactions for single-fee execution. Active
// batches live in memory inside the coordinator; terminal batches move
// to the batch store.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/events"
	"parkchain-gateway/internal/gateway"
	"parkchain-gateway/internal/idhash"
	"parkchain-gateway/internal/ledger"
	"parkchain-gateway/internal/storage"
)

// Batch precondition errors.
var (
	ErrBatchNotFound   = errors.New("batch: not found")
	ErrBatchNotPending = errors.New("batch: not pending")
	ErrBatchFull       = errors.New("batch: full")
	ErrBatchEmpty      = errors.New("batch: empty")
	ErrTierNoBatching  = errors.New("batch: tier does not support batching")
	ErrItemNotFound    = errors.New("batch: item not found")
)

// TierSource supplies the persisted tier for batch sizing.
type TierSource interface {
	CurrentTier(ctx context.Context) (domain.Tier, error)
}

// Progress is pushed to the optional callback during execution.
type Progress struct {
	Stage    string `json:"stage"` // building, executing, complete, error
	Message  string `json:"message"`
	Progress string `json:"progress,omitempty"` // percent, executing stage only
}

// Coordinator manages batch lifecycle and execution.
type Coordinator struct {
	tiers  TierSource
	ledger *ledger.Service
	sender gateway.Sender
	store  storage.BatchStore
	bus    *events.Bus
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[string]*domain.Batch
}

// Options configures a Coordinator.
type Options struct {
	Tiers      TierSource
	Ledger     *ledger.Service
	Sender     gateway.Sender
	BatchStore storage.BatchStore
	Bus        *events.Bus
	Logger     *log.Logger
	Now        func() time.Time
}

// NewCoordinator creates a coordinator with no active batches.
func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[batch] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		tiers:  opts.Tiers,
		ledger: opts.Ledger,
		sender: opts.Sender,
		store:  opts.BatchStore,
		bus:    opts.Bus,
		logger: logger,
		now:    now,
		active: map[string]*domain.Batch{},
	}
}

// CreateOptions tunes a new batch. Atomic defaults to true.
type CreateOptions struct {
	Priority string
	Atomic   *bool
}

// CreateBatch opens a new pending batch sized by the persisted tier's
// batch cap. Tiers capped at 1 cannot batch at all. The cap is copied
// onto the batch and is not re-checked if the tier changes later.
func (c *Coordinator) CreateBatch(ctx context.Context, opts CreateOptions) (*domain.Batch, error) {
	tier, err := c.tiers.CurrentTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier: %w", err)
	}
	if tier.Benefits.MaxBatchSize <= 1 {
		return nil, fmt.Errorf("%w: %s tier", ErrTierNoBatching, tier.Name)
	}

	priority := opts.Priority
	if priority == "" {
		priority = "normal"
	}

	now := c.now().UTC()
	b := &domain.Batch{
		ID:        idhash.NewBatchID(now),
		Status:    domain.BatchPending,
		MaxSize:   tier.Benefits.MaxBatchSize,
		TierID:    tier.ID,
		Priority:  priority,
		Atomic:    opts.Atomic == nil || *opts.Atomic,
		CreatedAt: now,
	}

	c.mu.Lock()
	c.active[b.ID] = b
	c.mu.Unlock()

	c.logger.Printf("created batch %s (max %d, atomic %t)", b.ID, b.MaxSize, b.Atomic)
	return b.Clone(), nil
}

// ItemInput describes one transaction queued into a batch.
type ItemInput struct {
	Amount   float64
	Metadata map[string]string
}

// AddToBatch appends an item to a pending batch and refreshes the
// estimated savings. Returns the item id and a snapshot of the batch.
func (c *Coordinator) AddToBatch(batchID string, input ItemInput) (string, *domain.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.active[batchID]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if b.Status != domain.BatchPending {
		return "", nil, fmt.Errorf("%w: batch is %s", ErrBatchNotPending, b.Status)
	}
	if len(b.Items) >= b.MaxSize {
		return "", nil, fmt.Errorf("%w: max %d items", ErrBatchFull, b.MaxSize)
	}

	item := &domain.BatchItem{
		ID:       idhash.NewItemID(c.now()),
		Amount:   input.Amount,
		Status:   domain.StatusPending,
		AddedAt:  c.now().UTC(),
		Metadata: input.Metadata,
	}
	b.Items = append(b.Items, item)
	b.RecomputeSavings()

	return item.ID, b.Clone(), nil
}

// RemoveFromBatch drops an item from a pending batch and refreshes the
// estimated savings.
func (c *Coordinator) RemoveFromBatch(batchID, itemID string) (*domain.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.active[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if b.Status != domain.BatchPending {
		return nil, fmt.Errorf("%w: batch is %s", ErrBatchNotPending, b.Status)
	}

	for i, item := range b.Items {
		if item.ID == itemID {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
			b.RecomputeSavings()
			return b.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// ExecuteResult is the outcome of one ExecuteBatch call.
type ExecuteResult struct {
	Success bool                          `json:"success"`
	Batch   *domain.Batch                 `json:"batch"`
	Summary *domain.BatchExecutionSummary `json:"summary"`
}

// ExecuteBatch runs the batch items sequentially through the sender.
// Every executed item is recorded in the ledger with the split gateway
// fee on success. In atomic mode the first failure aborts the remaining
// items and the whole batch lands in history as failed; ledger records
// already written for earlier items are NOT rolled back. In non-atomic
// mode execution continues and the batch ends success, failed or
// partial by item outcome.
//
// The terminal batch always moves from the active set to the store.
func (c *Coordinator) ExecuteBatch(ctx context.Context, batchID string, onProgress func(Progress)) (*ExecuteResult, error) {
	c.mu.Lock()
	b, ok := c.active[batchID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if b.Status != domain.BatchPending {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: batch is %s", ErrBatchNotPending, b.Status)
	}
	if len(b.Items) == 0 {
		c.mu.Unlock()
		return nil, ErrBatchEmpty
	}
	b.Status = domain.BatchBuilding
	c.mu.Unlock()

	notify := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	notify(Progress{Stage: "building", Message: "Building batch transaction..."})

	start := c.now()
	total := len(b.Items)
	splitFee := domain.DefaultGatewayFee / float64(total)

	var successful, failed int
	aborted := false

	for i, item := range b.Items {
		notify(Progress{
			Stage:    "executing",
			Message:  fmt.Sprintf("Executing transaction %d/%d...", i+1, total),
			Progress: strconv.Itoa(i * 100 / total),
		})

		res, err := c.sender.Send(ctx, gateway.SendRequest{
			Channel: domain.ChannelGateway,
			Amount:  item.Amount,
		})
		if err != nil {
			c.mu.Lock()
			item.Status = domain.StatusFailed
			item.Error = err.Error()
			c.mu.Unlock()
			failed++
			c.recordItem(ctx, b, item, nil, splitFee, start)
			if b.Atomic {
				aborted = true
				// Remaining items stay pending; ledger records already
				// written for earlier successes are not rolled back.
				break
			}
			continue
		}

		c.mu.Lock()
		item.Status = domain.StatusSuccess
		item.Signature = res.Signature
		c.mu.Unlock()
		successful++
		c.recordItem(ctx, b, item, res, splitFee, start)
	}

	// Snapshot readers clone the batch under the mutex, so the terminal
	// state is written and the batch leaves the active set in one
	// critical section.
	c.mu.Lock()
	switch {
	case aborted:
		b.Status = domain.BatchFailed
	case successful == total:
		b.Status = domain.BatchSuccess
	case failed == total:
		b.Status = domain.BatchFailed
	default:
		b.Status = domain.BatchPartial
	}
	b.CompletedAt = c.now().UTC()
	b.ExecutionTimeMs = c.now().Sub(start).Milliseconds()
	delete(c.active, batchID)
	c.mu.Unlock()

	if err := c.store.Append(ctx, b.Clone()); err != nil {
		c.logger.Printf("persist batch %s failed: %v", b.ID, err)
	}

	summary := &domain.BatchExecutionSummary{
		Total:            total,
		Successful:       successful,
		Failed:           failed,
		ExecutionTimeMs:  b.ExecutionTimeMs,
		EstimatedSavings: b.EstimatedSavings,
	}

	if aborted {
		notify(Progress{Stage: "error", Message: "Batch failed atomically"})
	} else {
		notify(Progress{
			Stage:   "complete",
			Message: fmt.Sprintf("Batch complete: %d/%d succeeded", successful, total),
		})
	}

	c.logger.Printf("batch %s finished %s (%d/%d ok, %dms)", b.ID, b.Status, successful, total, b.ExecutionTimeMs)
	if c.bus != nil {
		c.bus.Publish(events.TypeBatchCompleted, b.Clone())
	}

	return &ExecuteResult{
		Success: b.Status == domain.BatchSuccess,
		Batch:   b.Clone(),
		Summary: summary,
	}, nil
}

// recordItem writes one executed item to the ledger. Failed items carry
// a synthetic failure signature and no fee split.
func (c *Coordinator) recordItem(ctx context.Context, b *domain.Batch, item *domain.BatchItem, res *gateway.SendResult, splitFee float64, start time.Time) {
	meta := map[string]string{
		"batchId":   b.ID,
		"batchSize": strconv.Itoa(len(b.Items)),
	}
	for k, v := range item.Metadata {
		meta[k] = v
	}

	input := ledger.TransactionInput{
		Amount:         item.Amount,
		DeliveryMethod: domain.DeliveryGatewayBatch,
		Metadata:       meta,
	}
	if res != nil {
		input.Signature = res.Signature
		input.Status = domain.StatusSuccess
		input.ConfirmationTimeMs = c.now().Sub(start).Milliseconds()
		input.JitoTipRefunded = res.JitoTipRefunded
		input.GatewayFee = splitFee
	} else {
		input.Signature = "failed_" + item.ID
		input.Status = domain.StatusFailed
		meta["error"] = item.Error
	}

	if _, err := c.ledger.AddTransaction(ctx, input); err != nil {
		c.logger.Printf("record batch item %s failed: %v", item.ID, err)
	}
}

// CancelBatch drops a pending batch from the active set without
// executing or persisting it.
func (c *Coordinator) CancelBatch(batchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.active[batchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if b.Status != domain.BatchPending {
		return fmt.Errorf("%w: batch is %s", ErrBatchNotPending, b.Status)
	}
	delete(c.active, batchID)
	return nil
}

// GetBatch returns a snapshot of one active batch.
func (c *Coordinator) GetBatch(batchID string) (*domain.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.active[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return b.Clone(), nil
}

// ActiveBatches returns snapshots of all active batches, oldest first.
func (c *Coordinator) ActiveBatches() []*domain.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*domain.Batch, 0, len(c.active))
	for _, b := range c.active {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// BatchHistory returns up to limit terminal batches, most-recent-first.
func (c *Coordinator) BatchHistory(ctx context.Context, limit int) ([]*domain.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.store.GetRecent(ctx, limit)
}

// Stats summarizes persisted batch history plus the live active count.
type Stats struct {
	TotalBatches      int64   `json:"totalBatches"`
	SuccessfulBatches int64   `json:"successfulBatches"`
	SuccessRate       string  `json:"successRate"`
	TotalTransactions int64   `json:"totalTransactions"`
	AverageBatchSize  string  `json:"averageBatchSize"`
	TotalSavings      string  `json:"totalSavings"`
	ActiveBatches     int     `json:"activeBatches"`
}

// BatchStats aggregates over the full persisted history.
func (c *Coordinator) BatchStats(ctx context.Context) (*Stats, error) {
	history, err := c.store.GetRecent(ctx, int(^uint(0)>>1))
	if err != nil {
		return nil, fmt.Errorf("load batch history: %w", err)
	}

	stats := &Stats{
		SuccessRate:      "0.00",
		AverageBatchSize: "0",
		TotalSavings:     "0.000000",
	}

	var totalSavings float64
	for _, b := range history {
		stats.TotalBatches++
		if b.Status == domain.BatchSuccess {
			stats.SuccessfulBatches++
		}
		stats.TotalTransactions += int64(len(b.Items))
		totalSavings += b.EstimatedSavings
	}
	if stats.TotalBatches > 0 {
		stats.SuccessRate = fmt.Sprintf("%.2f", float64(stats.SuccessfulBatches)/float64(stats.TotalBatches)*100)
		stats.AverageBatchSize = fmt.Sprintf("%.1f", float64(stats.TotalTransactions)/float64(stats.TotalBatches))
	}
	stats.TotalSavings = fmt.Sprintf("%.6f", totalSavings)

	c.mu.Lock()
	stats.ActiveBatches = len(c.active)
	c.mu.Unlock()

	return stats, nil
}

// Efficiency reports the fee arithmetic of batching a given count of
// transactions, clamped to the tier's cap.
type Efficiency struct {
	TransactionCount int    `json:"transactionCount"`
	IndividualCost   string `json:"individualCost"`
	BatchCost        string `json:"batchCost"`
	Savings          string `json:"savings"`
	SavingsPercent   string `json:"savingsPercent"`
	Recommended      bool   `json:"recommended"`
}

// CalculateBatchEfficiency compares batched versus individual fees.
// Batching is recommended from 3 transactions up.
func (c *Coordinator) CalculateBatchEfficiency(ctx context.Context, transactionCount int) (*Efficiency, error) {
	tier, err := c.tiers.CurrentTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier: %w", err)
	}
	if transactionCount > tier.Benefits.MaxBatchSize {
		transactionCount = tier.Benefits.MaxBatchSize
	}

	n := float64(transactionCount)
	individual := n * domain.DefaultGatewayFee
	batched := domain.DefaultGatewayFee + n*domain.BatchItemOverhead
	savings := individual - batched

	pct := 0.0
	if individual > 0 {
		pct = savings / individual * 100
	}

	return &Efficiency{
		TransactionCount: transactionCount,
		IndividualCost:   fmt.Sprintf("%.6f", individual),
		BatchCost:        fmt.Sprintf("%.6f", batched),
		Savings:          fmt.Sprintf("%.6f", savings),
		SavingsPercent:   fmt.Sprintf("%.1f%%", pct),
		Recommended:      transactionCount >= 3,
	}, nil
}
