package handshake

import (
	"context"
	"errors"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// ErrNotFound is returned by Journal.Load and Journal.UpdateState when no
// row exists for the transaction id. Implementations may wrap it.
var ErrNotFound = errors.New("transaction not found")

// Signer produces and checks signatures over canonical messages.
// Sign must be deterministic enough that Verify accepts its output for the
// same (message, keyID) pair.
type Signer interface {
	Sign(message, keyID string) (string, error)
	Verify(signature, message, keyID string) bool
}

// RandomSource yields unpredictable hex tokens of byteCount random bytes.
// The orchestrator never interprets the value.
type RandomSource interface {
	NextHex(byteCount int) (string, error)
}

// Clock reports wall-clock unix seconds. Readings must not decrease.
type Clock interface {
	NowUnixSeconds() uint64
}

// Journal persists LocalTransaction rows keyed by transaction id.
//
// Save is an idempotent upsert. A successful Save must be visible to the
// next Load of the same id, and Saves to different ids must not interfere.
// UpdateState is reserved for the synchronization process.
type Journal interface {
	Save(ctx context.Context, tx wallet.LocalTransaction) error
	Load(ctx context.Context, txID string) (wallet.LocalTransaction, error)
	UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error
}
