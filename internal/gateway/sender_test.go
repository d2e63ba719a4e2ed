package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"parkchain-gateway/internal/domain"
)

func newSender(cfg Config) *SimulatedSender {
	cfg.Seed = 42
	return NewSimulatedSender(cfg, log.New(io.Discard, "", 0))
}

func TestSendAlwaysSucceedsAtZeroFailureRate(t *testing.T) {
	s := newSender(Config{FailureRate: 0, RefundRate: 1, LatencyJitter: 0.4})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		res, err := s.Send(ctx, SendRequest{Channel: domain.ChannelGateway, Amount: 100})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if res.Signature == "" {
			t.Fatalf("empty signature")
		}
		if res.ConfirmationTimeMs <= 0 {
			t.Fatalf("confirmation time = %d", res.ConfirmationTimeMs)
		}
		if res.DeliveryMethod != domain.ChannelGateway {
			t.Fatalf("delivery method = %s", res.DeliveryMethod)
		}
	}
}

func TestSendAlwaysFailsAtFullFailureRate(t *testing.T) {
	s := newSender(Config{FailureRate: 1})

	_, err := s.Send(context.Background(), SendRequest{Channel: domain.ChannelRPC})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("error = %v, want ErrDeliveryFailed", err)
	}
}

func TestJitoTipRefund(t *testing.T) {
	s := newSender(Config{FailureRate: 0, RefundRate: 1})

	res, err := s.Send(context.Background(), SendRequest{Channel: domain.ChannelJito, JitoTip: 0.0001})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.JitoTipRefunded != 0.0001 {
		t.Fatalf("refund = %v, want 0.0001", res.JitoTipRefunded)
	}

	// Refunds only apply to jito sends.
	res, err = s.Send(context.Background(), SendRequest{Channel: domain.ChannelGateway, JitoTip: 0.0001})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.JitoTipRefunded != 0 {
		t.Fatalf("non-jito refund = %v", res.JitoTipRefunded)
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	s := newSender(Config{FailureRate: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, SendRequest{Channel: domain.ChannelRPC})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestLatencyTracksChannelSeed(t *testing.T) {
	s := newSender(Config{FailureRate: 0, LatencyJitter: 0.1})
	ctx := context.Background()

	// Triton's 2000ms seed with 10% jitter stays within [1800, 2200].
	for i := 0; i < 20; i++ {
		res, err := s.Send(ctx, SendRequest{Channel: domain.ChannelTriton})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if res.ConfirmationTimeMs < 1800 || res.ConfirmationTimeMs > 2200 {
			t.Fatalf("triton latency = %dms, want within 10%% of 2000", res.ConfirmationTimeMs)
		}
	}
}
