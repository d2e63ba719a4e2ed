package memory

import (
	"context"
	"testing"

	"parkchain-gateway/internal/domain"
)

func TestMetricsStore_ZeroAggregateWhenEmpty(t *testing.T) {
	store := NewMetricsStore()
	ctx := context.Background()

	agg, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if agg.TotalTransactions != 0 || agg.TotalSavings != 0 {
		t.Errorf("Expected zero aggregate, got %+v", agg)
	}
}

func TestMetricsStore_PutAndGet(t *testing.T) {
	store := NewMetricsStore()
	ctx := context.Background()

	in := &domain.MetricsAggregate{
		TotalTransactions:      10,
		SuccessfulTransactions: 8,
		FailedTransactions:     2,
		SuccessfulVolume:       4000,
		TotalSavings:           0.0005,
	}
	if err := store.Put(ctx, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TotalTransactions != 10 || got.SuccessfulVolume != 4000 {
		t.Errorf("Aggregate mismatch: %+v", got)
	}

	// The returned value is a copy.
	got.TotalTransactions = 999
	again, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.TotalTransactions != 10 {
		t.Errorf("Stored aggregate mutated through returned copy")
	}
}
