package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// ErrJournalDown is the error FailingJournal injects.
var ErrJournalDown = errors.New("testutil: journal unavailable")

// FailingJournal wraps a journal and fails selected operations on demand.
// It counts calls so tests can assert that a rejected operation never
// reached persistence.
//
// Thread-safety: safe for concurrent use if the wrapped journal is.
type FailingJournal struct {
	inner handshake.Journal

	mu         sync.Mutex
	failSave   bool
	failLoad   bool
	saveCalls  int
	loadCalls  int
	stateCalls int
}

// NewFailingJournal wraps inner. Nothing fails until configured.
func NewFailingJournal(inner handshake.Journal) *FailingJournal {
	return &FailingJournal{inner: inner}
}

// FailSaves toggles failure of Save.
func (j *FailingJournal) FailSaves(fail bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failSave = fail
}

// FailLoads toggles failure of Load.
func (j *FailingJournal) FailLoads(fail bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failLoad = fail
}

// SaveCalls returns the number of Save calls, failed ones included.
func (j *FailingJournal) SaveCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveCalls
}

// LoadCalls returns the number of Load calls, failed ones included.
func (j *FailingJournal) LoadCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loadCalls
}

// Save implements handshake.Journal.
func (j *FailingJournal) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	j.mu.Lock()
	j.saveCalls++
	fail := j.failSave
	j.mu.Unlock()
	if fail {
		return ErrJournalDown
	}
	return j.inner.Save(ctx, tx)
}

// Load implements handshake.Journal.
func (j *FailingJournal) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	j.mu.Lock()
	j.loadCalls++
	fail := j.failLoad
	j.mu.Unlock()
	if fail {
		return wallet.LocalTransaction{}, ErrJournalDown
	}
	return j.inner.Load(ctx, txID)
}

// UpdateState implements handshake.Journal.
func (j *FailingJournal) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	j.mu.Lock()
	j.stateCalls++
	j.mu.Unlock()
	return j.inner.UpdateState(ctx, txID, state, reason)
}

// StateCalls returns the number of UpdateState calls.
func (j *FailingJournal) StateCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stateCalls
}
