package domain

import "time"

// Batch statuses. The state machine is monotonic:
// pending -> building -> success | failed | partial.
const (
	BatchPending  = "pending"
	BatchBuilding = "building"
	BatchSuccess  = "success"
	BatchFailed   = "failed"
	BatchPartial  = "partial" // some items succeeded, some failed
)

// Per-batch fee constants. A batch pays one gateway fee plus a small
// per-item overhead instead of one full fee per item.
const (
	BatchItemOverhead = 0.00001
)

// BatchItem wraps one transaction payload queued inside a batch, plus its
// per-item execution outcome.
type BatchItem struct {
	ID        string            `json:"id"`
	Amount    float64           `json:"amount"`
	Status    string            `json:"status"` // pending, success, failed
	Signature string            `json:"signature,omitempty"`
	Error     string            `json:"error,omitempty"`
	AddedAt   time.Time         `json:"addedAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Batch is a bounded, ordered collection of transactions awaiting
// single-fee execution. MaxSize is copied from the tier's benefit at
// creation time and is not re-checked if the tier changes mid-batch.
type Batch struct {
	ID               string       `json:"id"`
	Status           string       `json:"status"`
	Items            []*BatchItem `json:"transactions"`
	MaxSize          int          `json:"maxSize"`
	TierID           string       `json:"tier"`
	Priority         string       `json:"priority"`
	Atomic           bool         `json:"atomic"`
	CreatedAt        time.Time    `json:"createdAt"`
	CompletedAt      time.Time    `json:"completedAt,omitempty"`
	ExecutionTimeMs  int64        `json:"executionTime,omitempty"`
	EstimatedSavings float64      `json:"estimatedSavings"`
}

// RecomputeSavings updates EstimatedSavings for the current item count:
// n individual gateway fees versus one fee plus per-item overhead.
func (b *Batch) RecomputeSavings() {
	n := float64(len(b.Items))
	if n == 0 {
		b.EstimatedSavings = 0
		return
	}
	individual := n * DefaultGatewayFee
	batched := DefaultGatewayFee + n*BatchItemOverhead
	b.EstimatedSavings = individual - batched
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	out := *b
	out.Items = make([]*BatchItem, len(b.Items))
	for i, item := range b.Items {
		c := *item
		out.Items[i] = &c
	}
	return &out
}

// BatchExecutionSummary reports the outcome of one batch execution.
type BatchExecutionSummary struct {
	Total            int     `json:"total"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	ExecutionTimeMs  int64   `json:"executionTime"`
	EstimatedSavings float64 `json:"estimatedSavings"`
}
