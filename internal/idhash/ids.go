// Package idhash generates identifiers and synthetic signatures for
// gateway records.
package idhash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// NewTransactionID returns an opaque transaction id of the form
// tx_<unix-ms>_<random>. The random suffix makes collisions within the
// same millisecond practically impossible.
func NewTransactionID(now time.Time) string {
	return newID("tx", now)
}

// NewBatchID returns an opaque batch id of the form batch_<unix-ms>_<random>.
func NewBatchID(now time.Time) string {
	return newID("batch", now)
}

// NewItemID returns an opaque batch item id.
func NewItemID(now time.Time) string {
	return newID("item", now)
}

func newID(prefix string, now time.Time) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the timestamp alone rather than panicking.
		return fmt.Sprintf("%s_%d", prefix, now.UnixNano())
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), hex.EncodeToString(buf[:]))
}

// ComputeSignature derives a deterministic synthetic signature for a
// record id. Two SHA256 rounds produce 64 bytes, base58-encoded so the
// result has the shape of a real transaction signature.
func ComputeSignature(id string, timestamp int64) string {
	first := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", id, timestamp)))
	second := sha256.Sum256(first[:])

	sig := make([]byte, 0, 64)
	sig = append(sig, first[:]...)
	sig = append(sig, second[:]...)
	return base58.Encode(sig)
}
