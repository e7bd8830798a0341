package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/journal"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// Assertion validates the journals after the last step. All assertions
// refer to the current transaction.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": the side's row is in State
	// - "absent": the side has no row
	// - "history_count": the side's history has exactly Count events
	// - "signed": the messages signed during the run are exactly Signed
	Type string `yaml:"type"`

	// Side is "merchant" or "payer" (used by state, absent, history_count).
	Side string `yaml:"side,omitempty"`

	// State is the expected row state (used by state).
	State string `yaml:"state,omitempty"`

	// Count is the expected number of history events (used by history_count).
	Count int `yaml:"count,omitempty"`

	// Signed lists canonical messages in signing order (used by signed).
	Signed []string `yaml:"signed,omitempty"`
}

// Assertion type constants.
const (
	AssertState        = "state"
	AssertAbsent       = "absent"
	AssertHistoryCount = "history_count"
	AssertSigned       = "signed"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Side     string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s", e.Type)
	if e.Side != "" {
		fmt.Fprintf(&buf, " (%s)", e.Side)
	}
	fmt.Fprintf(&buf, ": expected %s, actual %s", e.Expected, e.Actual)
	return buf.String()
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if err := validateSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if _, err := wallet.ParseTransactionState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertAbsent:
		if err := validateSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertHistoryCount:
		if err := validateSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	case AssertSigned:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// evaluateAssertions checks every assertion and combines the failures.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) error {
	var errs error
	for _, a := range assertions {
		errs = multierr.Append(errs, h.evaluate(ctx, a))
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertState:
		return h.assertState(ctx, a)
	case AssertAbsent:
		return h.assertAbsent(ctx, a)
	case AssertHistoryCount:
		return h.assertHistoryCount(ctx, a)
	case AssertSigned:
		return h.assertSigned(a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (h *Harness) assertState(ctx context.Context, a Assertion) error {
	got, err := h.side(a.Side).state(ctx, h.txID)
	if err != nil {
		return err
	}
	if string(got) == a.State {
		return nil
	}
	actual := string(got)
	if actual == "" {
		actual = "no row"
	}
	return &AssertionError{Type: a.Type, Side: a.Side, Expected: a.State, Actual: actual}
}

func (h *Harness) assertAbsent(ctx context.Context, a Assertion) error {
	tx, err := h.side(a.Side).journal.Load(ctx, h.txID)
	if errors.Is(err, journal.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{Type: a.Type, Side: a.Side, Expected: "no row", Actual: "row in state " + string(tx.State)}
}

func (h *Harness) assertHistoryCount(ctx context.Context, a Assertion) error {
	events, err := h.side(a.Side).journal.History(ctx, h.txID)
	if err != nil {
		return err
	}
	if len(events) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Side:     a.Side,
		Expected: fmt.Sprintf("%d events", a.Count),
		Actual:   fmt.Sprintf("%d events", len(events)),
	}
}

func (h *Harness) assertSigned(a Assertion) error {
	signed := h.signer.Signed()
	if slices.Equal(signed, a.Signed) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%q", a.Signed),
		Actual:   fmt.Sprintf("%q", signed),
	}
}
