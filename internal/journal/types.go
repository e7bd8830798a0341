package journal

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// ErrNotFound is handshake.ErrNotFound, re-exported for callers that only
// import journal.
var ErrNotFound = handshake.ErrNotFound

// ErrInvalidTransition is returned by UpdateState when the requested state
// would move a row backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Op names the journal operation that produced an Event.
type Op string

const (
	OpSave        Op = "save"
	OpUpdateState Op = "update_state"
)

// Event is one row of the append-only journal history.
type Event struct {
	Seq        int64                   `json:"seq"`
	EventID    string                  `json:"event_id"`
	TxID       string                  `json:"tx_id"`
	Op         Op                      `json:"op"`
	State      wallet.TransactionState `json:"state"`
	Reason     string                  `json:"reason,omitempty"`
	RecordedAt uint64                  `json:"recorded_at"`
}

// Store is a journal that can also be inspected. All implementations in
// this package satisfy it.
type Store interface {
	handshake.Journal
	List(ctx context.Context, filter Filter) ([]wallet.LocalTransaction, error)
	History(ctx context.Context, txID string) ([]Event, error)
	Close() error
}

var (
	_ Store = (*SQLiteJournal)(nil)
	_ Store = (*PostgresJournal)(nil)
	_ Store = (*Memory)(nil)
)

// Filter selects rows for List. Zero values match everything.
type Filter struct {
	State wallet.TransactionState
	Limit int
}

// EventIDGenerator generates unique journal event ids.
type EventIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 event ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a journal implementation.
type Option func(*options)

type options struct {
	clock handshake.Clock
	ids   EventIDGenerator
}

func defaultOptions() options {
	return options{
		clock: handshake.SystemClock{},
		ids:   UUIDv7Generator{},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock that stamps UpdateState changes and history
// rows. Save keeps the timestamps carried by the transaction itself.
func WithClock(c handshake.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithEventIDs sets the generator for history event ids.
func WithEventIDs(g EventIDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// checkTransition validates an UpdateState request.
func checkTransition(current, next wallet.TransactionState) error {
	if !next.IsTerminal() || !current.CanAdvanceTo(next) {
		return &TransitionError{From: current, To: next}
	}
	return nil
}

// TransitionError describes a rejected UpdateState. It matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From wallet.TransactionState
	To   wallet.TransactionState
}

func (e *TransitionError) Error() string {
	return "invalid state transition " + string(e.From) + " -> " + string(e.To)
}

// Is reports whether target is ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
