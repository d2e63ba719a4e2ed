// Package gateway simulates transaction delivery over the routed
// channels. No chain connection exists anywhere in the system; the
// sender fabricates latency, failures and Jito tip refunds so the rest
// of the pipeline behaves like it is talking to a real gateway.
package gateway

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/idhash"
)

// ErrDeliveryFailed is returned when the simulated channel drops the
// transaction.
var ErrDeliveryFailed = errors.New("gateway: delivery failed")

// SendRequest describes one delivery attempt.
type SendRequest struct {
	Channel string
	Amount  float64

	// JitoTip is the tip attached when the channel is jito. Refunded in
	// full when delivery lands over RPC first.
	JitoTip float64
}

// SendResult is the outcome of a delivery attempt.
type SendResult struct {
	Signature          string
	ConfirmationTimeMs int64
	JitoTipRefunded    float64
	DeliveryMethod     string
}

// Sender delivers transactions over a channel.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// SimulatedSender fabricates delivery outcomes. Latency is drawn around
// the channel's seed confirmation time, failures follow FailureRate, and
// jito sends refund their tip with RefundRate probability.
type SimulatedSender struct {
	cfg    Config
	logger *log.Logger
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Config tunes the simulation.
type Config struct {
	// FailureRate in [0, 1]; fraction of sends that fail.
	FailureRate float64

	// RefundRate in [0, 1]; fraction of jito sends whose tip comes back.
	RefundRate float64

	// LatencyJitter in [0, 1]; latency is uniform in
	// [base*(1-j), base*(1+j)] where base is the channel seed time.
	LatencyJitter float64

	// Sleep makes Send actually wait out the simulated latency. Off in
	// tests, on in the live server so deliveries feel real.
	Sleep bool

	Seed int64
}

// DefaultConfig matches the demo behavior: one send in twenty fails,
// most jito tips come back.
func DefaultConfig() Config {
	return Config{
		FailureRate:   0.05,
		RefundRate:    0.8,
		LatencyJitter: 0.4,
	}
}

// NewSimulatedSender creates a sender. A zero Seed seeds from the clock.
func NewSimulatedSender(cfg Config, logger *log.Logger) *SimulatedSender {
	if logger == nil {
		logger = log.New(log.Writer(), "[gateway] ", log.LstdFlags)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSender{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Send simulates one delivery. The signature is synthetic but stable in
// shape with real base58 transaction signatures.
func (s *SimulatedSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	latency, failed, refunded := s.roll(req.Channel)

	if s.cfg.Sleep {
		timer := time.NewTimer(time.Duration(latency) * time.Millisecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failed {
		s.logger.Printf("delivery failed on %s after %dms", req.Channel, latency)
		return nil, ErrDeliveryFailed
	}

	ts := s.now().UTC()
	id := idhash.NewTransactionID(ts)
	result := &SendResult{
		Signature:          idhash.ComputeSignature(id, ts.UnixMilli()),
		ConfirmationTimeMs: latency,
		DeliveryMethod:     req.Channel,
	}
	if req.Channel == domain.ChannelJito && refunded {
		result.JitoTipRefunded = req.JitoTip
	}
	return result, nil
}

// roll draws latency and outcomes under the lock; the rand source is not
// safe for concurrent use.
func (s *SimulatedSender) roll(channel string) (latencyMs int64, failed, refunded bool) {
	base := 5000.0
	if seed, ok := domain.DefaultChannelPerformance()[channel]; ok {
		base = seed.AvgConfirmTimeMs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jitter := (s.rng.Float64()*2 - 1) * s.cfg.LatencyJitter
	latencyMs = int64(base * (1 + jitter))
	if latencyMs < 1 {
		latencyMs = 1
	}
	failed = s.rng.Float64() < s.cfg.FailureRate
	refunded = s.rng.Float64() < s.cfg.RefundRate
	return latencyMs, failed, refunded
}

var _ Sender = (*SimulatedSender)(nil)
