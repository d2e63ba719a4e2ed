package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkchain-gateway/internal/domain"
	"parkchain-gateway/internal/storage"
)

func TestTransactionStore_InsertAndGetAll(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:             "tx1",
		Timestamp:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Signature:      "sig1",
		Amount:         250,
		Status:         domain.StatusSuccess,
		DeliveryMethod: domain.DeliveryGateway,
		GatewayUsed:    true,
		GatewayFee:     0.0001,
	}

	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(all))
	}
	if all[0].ID != "tx1" {
		t.Errorf("ID mismatch: got %s, want tx1", all[0].ID)
	}
	if all[0].Amount != 250 {
		t.Errorf("Amount mismatch: got %v, want 250", all[0].Amount)
	}
}

func TestTransactionStore_MostRecentFirst(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	for i, id := range []string{"tx1", "tx2", "tx3"} {
		tx := &domain.Transaction{
			ID:        id,
			Timestamp: time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
			Status:    domain.StatusSuccess,
		}
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	want := []string{"tx3", "tx2", "tx1"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("Position %d: got %s, want %s", i, all[i].ID, id)
		}
	}
}

func TestTransactionStore_DuplicateKey(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.Transaction{ID: "tx1", Status: domain.StatusSuccess}

	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, tx)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_GetByTimeRange(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		tx := &domain.Transaction{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Status:    domain.StatusSuccess,
		}
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Half-open range [1h, 3h): picks hours 1 and 2.
	got, err := store.GetByTimeRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(got))
	}
	for _, tx := range got {
		if tx.ID != "b" && tx.ID != "c" {
			t.Errorf("Unexpected transaction in range: %s", tx.ID)
		}
	}
}

func TestTransactionStore_Clear(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Transaction{ID: "tx1", Status: domain.StatusSuccess}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected empty store after Clear, got %d", len(all))
	}

	// The id becomes reusable after Clear.
	if err := store.Insert(ctx, &domain.Transaction{ID: "tx1", Status: domain.StatusSuccess}); err != nil {
		t.Errorf("Insert after Clear failed: %v", err)
	}
}

func TestTransactionStore_DeepCopy(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:       "tx1",
		Status:   domain.StatusSuccess,
		Metadata: map[string]string{"batchId": "b1"},
	}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	tx.Metadata["batchId"] = "changed"
	tx.Amount = 999

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if all[0].Metadata["batchId"] != "b1" {
		t.Errorf("Stored metadata mutated: got %s", all[0].Metadata["batchId"])
	}
	if all[0].Amount != 0 {
		t.Errorf("Stored amount mutated: got %v", all[0].Amount)
	}
}
