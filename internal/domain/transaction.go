package domain

import "time"

// Transaction statuses. A transaction is created with one of these and is
// never revisited afterwards; pending records stay pending forever.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Delivery method labels for the synthetic channels.
const (
	DeliveryGateway      = "gateway"
	DeliveryRPC          = "rpc"
	DeliveryJito         = "jito"
	DeliveryTriton       = "triton"
	DeliveryGatewayBatch = "gateway-batch"
)

// DefaultGatewayFee is the flat per-transaction Gateway fee in SOL.
const DefaultGatewayFee = 0.0001

// Transaction represents one simulated payment attempt in the gateway log.
// Records are append-only: status is set once at creation and is terminal
// from the caller's perspective.
type Transaction struct {
	ID                 string            `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	Signature          string            `json:"signature"`
	Amount             float64           `json:"amount"`
	Status             string            `json:"status"`
	DeliveryMethod     string            `json:"deliveryMethod"`
	GatewayUsed        bool              `json:"gatewayUsed"`
	ConfirmationTimeMs int64             `json:"confirmationTime"`
	JitoTipRefunded    float64           `json:"jitoTipRefunded"`
	GatewayFee         float64           `json:"gatewayFee"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Savings returns the net savings contributed by this transaction:
// refunded tips minus the gateway fee actually charged.
func (t *Transaction) Savings() float64 {
	s := t.JitoTipRefunded
	if t.GatewayUsed {
		s -= t.GatewayFee
	}
	return s
}
