package testutil

import (
	"errors"
	"strconv"
	"sync"
)

// ErrRandomExhausted is returned by SequenceRandom once FailAfter calls
// have been served.
var ErrRandomExhausted = errors.New("testutil: random source exhausted")

// SequenceRandom returns predictable tokens: "x1", "x2", "x3", ...
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with the same SequenceRandom produces byte-identical
// ids, nonces and canonical messages.
//
// Thread-safety: SequenceRandom is safe for concurrent use via internal mutex.
type SequenceRandom struct {
	mu     sync.Mutex
	prefix string
	count  int

	// FailAfter, when positive, makes every call after the first FailAfter
	// calls return ErrRandomExhausted.
	FailAfter int
}

// NewSequenceRandom creates a generator whose tokens start with "x".
func NewSequenceRandom() *SequenceRandom {
	return &SequenceRandom{prefix: "x"}
}

// NewSequenceRandomWithPrefix creates a generator whose tokens start with prefix.
// Two devices in one test use different prefixes so their ids never collide.
func NewSequenceRandomWithPrefix(prefix string) *SequenceRandom {
	return &SequenceRandom{prefix: prefix}
}

// NextHex returns the next token. byteCount is ignored.
//
// Implements handshake.RandomSource.
func (r *SequenceRandom) NextHex(byteCount int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && r.count >= r.FailAfter {
		return "", ErrRandomExhausted
	}
	r.count++
	return r.prefix + strconv.Itoa(r.count), nil
}

// Calls returns the number of tokens handed out.
func (r *SequenceRandom) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
