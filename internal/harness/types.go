package harness

import "github.com/roach88/offlinewallet/internal/wallet"

// TraceEvent records what one step did.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Step    string `json:"step"`
	Outcome string `json:"outcome"`

	// TxID is the current transaction after the step, if any.
	TxID string `json:"tx_id,omitempty"`

	// State is the acting side's row state after the step. Empty for steps
	// without a side, or when that side has no row.
	State wallet.TransactionState `json:"state,omitempty"`

	// Signed is the canonical message signed by a successful step.
	Signed string `json:"signed,omitempty"`

	// Clock is the shared clock reading after the step.
	Clock uint64 `json:"clock"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step produced its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final journal row of the current transaction per
	// side. A side without a row is absent.
	State map[string]wallet.LocalTransaction `json:"state,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]wallet.LocalTransaction),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
