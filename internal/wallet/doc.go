// Package wallet holds the value types exchanged and persisted by the
// offline payment handshake.
//
// This package contains type definitions only. Every other internal
// package imports wallet; wallet imports nothing internal.
//
// Key design constraints:
//   - Amounts are int64 cents, never floats
//   - Timestamps are unix seconds (uint64) read from an injected clock
//   - All JSON tags use snake_case
//   - Protocol messages are immutable once produced; only LocalTransaction
//     is mutated, and only by moving its state forward
package wallet
