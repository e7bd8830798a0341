package wallet

import "fmt"

// TransactionState is the lifecycle position of a LocalTransaction.
//
// Order: initiated → authorized → pending_sync → {synced | rejected | expired}.
// The handshake produces the first three; the terminal states belong to
// the synchronization process.
type TransactionState string

const (
	StateInitiated   TransactionState = "initiated"
	StateAuthorized  TransactionState = "authorized"
	StatePendingSync TransactionState = "pending_sync"
	StateSynced      TransactionState = "synced"
	StateRejected    TransactionState = "rejected"
	StateExpired     TransactionState = "expired"
)

// AllStates lists every state in lifecycle order.
var AllStates = []TransactionState{
	StateInitiated,
	StateAuthorized,
	StatePendingSync,
	StateSynced,
	StateRejected,
	StateExpired,
}

// rank orders states; terminal states share the highest rank.
func (s TransactionState) rank() int {
	switch s {
	case StateInitiated:
		return 1
	case StateAuthorized:
		return 2
	case StatePendingSync:
		return 3
	case StateSynced, StateRejected, StateExpired:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known state.
func (s TransactionState) Valid() bool {
	return s.rank() > 0
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionState) IsTerminal() bool {
	return s.rank() == 4
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Terminal states are final; re-saving the same non-terminal
// state is allowed.
func (s TransactionState) CanAdvanceTo(next TransactionState) bool {
	if !s.Valid() || !next.Valid() || s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

func (s TransactionState) String() string {
	return string(s)
}

// ParseTransactionState converts the wire name of a state.
func ParseTransactionState(name string) (TransactionState, error) {
	s := TransactionState(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction state %q", name)
	}
	return s, nil
}
