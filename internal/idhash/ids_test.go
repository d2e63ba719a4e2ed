package idhash

import (
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

func TestIDFormat(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		gen    func(time.Time) string
		prefix string
	}{
		{"transaction", NewTransactionID, "tx_"},
		{"batch", NewBatchID, "batch_"},
		{"item", NewItemID, "item_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen(now)
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("Expected prefix %s, got %s", tt.prefix, id)
			}
			parts := strings.Split(id, "_")
			if len(parts) != 3 {
				t.Fatalf("Expected 3 parts, got %d: %s", len(parts), id)
			}
			if parts[1] != "1780315200000" {
				t.Errorf("Expected embedded unix ms, got %s", parts[1])
			}
			if len(parts[2]) != 12 {
				t.Errorf("Expected 12 hex chars of entropy, got %s", parts[2])
			}
		})
	}
}

func TestIDUniqueness(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewTransactionID(now)
		if _, dup := seen[id]; dup {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestComputeSignatureDeterministic(t *testing.T) {
	a := ComputeSignature("tx_1", 1700000000000)
	b := ComputeSignature("tx_1", 1700000000000)
	if a != b {
		t.Errorf("Same inputs produced different signatures: %s vs %s", a, b)
	}

	c := ComputeSignature("tx_2", 1700000000000)
	if a == c {
		t.Error("Different ids produced the same signature")
	}
	d := ComputeSignature("tx_1", 1700000000001)
	if a == d {
		t.Error("Different timestamps produced the same signature")
	}
}

func TestComputeSignatureShape(t *testing.T) {
	sig := ComputeSignature("tx_1", 1700000000000)

	raw, err := base58.Decode(sig)
	if err != nil {
		t.Fatalf("Signature is not valid base58: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("Expected 64 decoded bytes, got %d", len(raw))
	}
}
