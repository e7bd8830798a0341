package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// Memory is an in-process journal with the same semantics as SQLiteJournal.
// Nothing survives the process.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	rows   map[string]wallet.LocalTransaction
	events []Event
	opts   options
}

var _ handshake.Journal = (*Memory)(nil)

// NewMemory returns an empty in-memory journal.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		rows: make(map[string]wallet.LocalTransaction),
		opts: applyOptions(opts),
	}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Save upserts tx by tx_id and appends a history event.
func (m *Memory) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.TxID == "" {
		return fmt.Errorf("save transaction: empty tx_id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[tx.TxID] = tx
	m.appendEvent(tx.TxID, OpSave, tx.State, tx.FailureReason)
	return nil
}

// Load returns the row for txID, or an error wrapping ErrNotFound.
func (m *Memory) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	if err := ctx.Err(); err != nil {
		return wallet.LocalTransaction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[txID]
	if !ok {
		return wallet.LocalTransaction{}, fmt.Errorf("load %s: %w", txID, ErrNotFound)
	}
	return tx, nil
}

// UpdateState moves a non-terminal row to a terminal state.
func (m *Memory) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[txID]
	if !ok {
		return fmt.Errorf("update state %s: %w", txID, ErrNotFound)
	}
	if err := checkTransition(tx.State, state); err != nil {
		return err
	}
	tx.State = state
	tx.FailureReason = reason
	tx.UpdatedAt = m.opts.clock.NowUnixSeconds()
	m.rows[txID] = tx
	m.appendEvent(txID, OpUpdateState, state, reason)
	return nil
}

// List returns rows matching filter, ordered by created_at then tx_id.
func (m *Memory) List(ctx context.Context, filter Filter) ([]wallet.LocalTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	txs := []wallet.LocalTransaction{}
	for _, tx := range m.rows {
		if filter.State != "" && tx.State != filter.State {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, k int) bool {
		if txs[i].CreatedAt != txs[k].CreatedAt {
			return txs[i].CreatedAt < txs[k].CreatedAt
		}
		return txs[i].TxID < txs[k].TxID
	})
	if filter.Limit > 0 && len(txs) > filter.Limit {
		txs = txs[:filter.Limit]
	}
	return txs, nil
}

// History returns the journal events for txID in write order.
func (m *Memory) History(ctx context.Context, txID string) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	events := []Event{}
	for _, ev := range m.events {
		if ev.TxID == txID {
			events = append(events, ev)
		}
	}
	return events, nil
}

// appendEvent must be called with mu held.
func (m *Memory) appendEvent(txID string, op Op, state wallet.TransactionState, reason string) {
	m.events = append(m.events, Event{
		Seq:        int64(len(m.events) + 1),
		EventID:    m.opts.ids.Generate(),
		TxID:       txID,
		Op:         op,
		State:      state,
		Reason:     reason,
		RecordedAt: m.opts.clock.NowUnixSeconds(),
	})
}
