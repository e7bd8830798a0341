package testutil

import (
	"errors"
	"sync"
)

// ErrSignerFailed is returned by StubSigner.Sign when Fail is set.
var ErrSignerFailed = errors.New("testutil: signer failed")

// StubSigner "signs" by concatenation: signature = keyID + "|" + message.
// It records every message it signed so tests can assert on canonical
// strings.
//
// Thread-safety: StubSigner is safe for concurrent use via internal mutex.
type StubSigner struct {
	mu     sync.Mutex
	signed []string

	// Fail makes Sign return ErrSignerFailed.
	Fail bool
}

// NewStubSigner creates a stub signer.
func NewStubSigner() *StubSigner {
	return &StubSigner{}
}

// Sign implements handshake.Signer.
func (s *StubSigner) Sign(message, keyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return "", ErrSignerFailed
	}
	s.signed = append(s.signed, message)
	return keyID + "|" + message, nil
}

// Verify implements handshake.Signer.
func (s *StubSigner) Verify(signature, message, keyID string) bool {
	return signature == keyID+"|"+message
}

// Signed returns a copy of every message signed so far, in order.
func (s *StubSigner) Signed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.signed))
	copy(out, s.signed)
	return out
}
