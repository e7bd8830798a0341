package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/journal"
	"github.com/roach88/offlinewallet/internal/testutil"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// Harness runs the steps of one scenario against two devices that share
// a clock and a signer but keep separate journals.
type Harness struct {
	clock    *testutil.ManualClock
	signer   *testutil.StubSigner
	merchant device
	payer    device

	// In-flight state between the devices.
	txID   string
	intent *wallet.Intent
	auth   *wallet.Authorization
}

type device struct {
	identity wallet.DeviceIdentity
	journal  *journal.SQLiteJournal
	orch     *handshake.Orchestrator
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh in-memory SQLite journals. The clock
// starts at ClockStart, ids come from testutil.SequenceRandom ("m1", "m2"
// for the merchant, "p1", "p2" for the payer) and signatures from
// testutil.StubSigner, so the same scenario always yields the same trace.
//
// A step whose outcome differs from its expectation fails the result but
// does not stop the run. An error is returned only when the scenario
// cannot be executed at all, e.g. authorize before any intent.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Name(), err)
		}
		result.AddTrace(ev)
		if want := step.expected(); ev.Outcome != want {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, ev.Step, want, ev.Outcome))
		}
	}

	for _, err := range multierr.Errors(h.evaluateAssertions(ctx, scenario.Assertions)) {
		result.AddError(err.Error())
	}

	if err := h.collectState(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

func newHarness(s *Scenario) (*Harness, error) {
	start := s.ClockStart
	if start == 0 {
		start = testutil.DefaultEpoch
	}
	h := &Harness{
		clock:  testutil.NewManualClockAt(start),
		signer: testutil.NewStubSigner(),
	}
	policy := s.Policy.Apply(wallet.DefaultRiskPolicy())

	var err error
	h.merchant, err = h.newDevice(s.Merchant, policy, "m")
	if err != nil {
		return nil, err
	}
	h.payer, err = h.newDevice(s.Payer, policy, "p")
	if err != nil {
		h.merchant.journal.Close()
		return nil, err
	}
	return h, nil
}

func (h *Harness) newDevice(id wallet.DeviceIdentity, policy wallet.RiskPolicy, prefix string) (device, error) {
	j, err := journal.Open(":memory:", journal.WithClock(h.clock))
	if err != nil {
		return device{}, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	orch, err := handshake.New(policy, h.signer, testutil.NewSequenceRandomWithPrefix(prefix), h.clock, j)
	if err != nil {
		j.Close()
		return device{}, err
	}
	return device{identity: id, journal: j, orch: orch}, nil
}

func (h *Harness) close() {
	h.merchant.journal.Close()
	h.payer.journal.Close()
}

func (h *Harness) side(name string) *device {
	if name == SidePayer {
		return &h.payer
	}
	return &h.merchant
}

// execute runs one step and describes it as a trace event.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Step: step.Name(), Outcome: OutcomeOK}

	var (
		actor *device
		err   error
	)
	switch {
	case step.Intent != nil:
		actor = &h.merchant
		ev.Outcome, ev.Signed, err = h.runIntent(ctx, *step.Intent)
	case step.Authorize != nil:
		actor = &h.payer
		ev.Outcome, ev.Signed, err = h.runAuthorize(ctx, *step.Authorize)
	case step.Accept != nil:
		actor = &h.merchant
		ev.Outcome, ev.Signed, err = h.runAccept(ctx, *step.Accept)
	case step.Mark != nil:
		actor = h.side(step.Mark.Side)
		ev.Outcome, err = h.runMark(ctx, *step.Mark)
	case step.Tamper != nil:
		err = h.tamper(*step.Tamper)
	case step.AdvanceClock != 0:
		h.clock.Advance(step.AdvanceClock)
	}
	if err != nil {
		return TraceEvent{}, err
	}

	ev.TxID = h.txID
	ev.Clock = h.clock.NowUnixSeconds()
	if actor != nil && h.txID != "" {
		ev.State, err = actor.state(ctx, h.txID)
		if err != nil {
			return TraceEvent{}, err
		}
	}
	return ev, nil
}

func (h *Harness) runIntent(ctx context.Context, s IntentStep) (string, string, error) {
	intent, _, err := h.merchant.orch.BuildMerchantIntent(ctx, h.merchant.identity, s.AmountCents, s.Currency)
	if err != nil {
		outcome, err := outcomeOf(err)
		return outcome, "", err
	}
	h.txID = intent.TxID
	h.intent = &intent
	h.auth = nil
	return OutcomeOK, handshake.IntentMessage(intent), nil
}

func (h *Harness) runAuthorize(ctx context.Context, s AuthorizeStep) (string, string, error) {
	if h.intent == nil {
		return "", "", errors.New("no intent to authorize")
	}
	if s.Verify && !handshake.VerifyIntent(h.signer, *h.intent, h.merchant.identity.SigningKeyID) {
		return OutcomeInvalidSignature, "", nil
	}
	auth, _, err := h.payer.orch.BuildPayerAuthorization(ctx, h.payer.identity, *h.intent)
	if err != nil {
		outcome, err := outcomeOf(err)
		return outcome, "", err
	}
	h.auth = &auth
	return OutcomeOK, handshake.AuthorizationMessage(auth), nil
}

func (h *Harness) runAccept(ctx context.Context, s AcceptStep) (string, string, error) {
	if h.auth == nil {
		return "", "", errors.New("no authorization to accept")
	}
	if s.Verify && !handshake.VerifyAuthorization(h.signer, *h.auth, h.payer.identity.SigningKeyID) {
		return OutcomeInvalidSignature, "", nil
	}
	if _, _, err := h.merchant.orch.AcceptAuthorization(ctx, h.merchant.identity, *h.auth); err != nil {
		outcome, err := outcomeOf(err)
		return outcome, "", err
	}
	return OutcomeOK, handshake.ReceiptMessage(h.auth.TxID, h.auth.AuthorizationID), nil
}

func (h *Harness) runMark(ctx context.Context, s MarkStep) (string, error) {
	if h.txID == "" {
		return "", errors.New("no transaction to mark")
	}
	state, err := wallet.ParseTransactionState(s.State)
	if err != nil {
		return "", err
	}
	if err := h.side(s.Side).journal.UpdateState(ctx, h.txID, state, s.Reason); err != nil {
		return outcomeOf(err)
	}
	return OutcomeOK, nil
}

// tamper overwrites one field of the in-flight message. Signatures are
// left as they were, so a verifying step will notice.
func (h *Harness) tamper(s TamperStep) error {
	switch s.Target {
	case TargetIntent:
		if h.intent == nil {
			return errors.New("no intent to tamper with")
		}
		return tamperIntent(h.intent, s.Field, s.Value)
	case TargetAuthorization:
		if h.auth == nil {
			return errors.New("no authorization to tamper with")
		}
		return tamperAuthorization(h.auth, s.Field, s.Value)
	}
	return fmt.Errorf("unknown tamper target %q", s.Target)
}

func tamperIntent(intent *wallet.Intent, field, value string) error {
	var err error
	switch field {
	case "tx_id":
		intent.TxID = value
	case "intent_id":
		intent.IntentID = value
	case "currency":
		intent.Currency = value
	case "merchant_nonce":
		intent.MerchantNonce = value
	case "merchant_signature":
		intent.MerchantSignature = value
	case "amount_cents":
		intent.AmountCents, err = strconv.ParseInt(value, 10, 64)
	case "issued_at":
		intent.IssuedAt, err = strconv.ParseUint(value, 10, 64)
	case "expires_at":
		intent.ExpiresAt, err = strconv.ParseUint(value, 10, 64)
	default:
		return fmt.Errorf("intent has no tamperable field %q", field)
	}
	if err != nil {
		return fmt.Errorf("tamper %s: %w", field, err)
	}
	return nil
}

func tamperAuthorization(auth *wallet.Authorization, field, value string) error {
	var err error
	switch field {
	case "tx_id":
		auth.TxID = value
	case "intent_id":
		auth.IntentID = value
	case "authorization_id":
		auth.AuthorizationID = value
	case "currency":
		auth.Currency = value
	case "payer_nonce":
		auth.PayerNonce = value
	case "payer_signature":
		auth.PayerSignature = value
	case "amount_cents":
		auth.AmountCents, err = strconv.ParseInt(value, 10, 64)
	case "authorized_at":
		auth.AuthorizedAt, err = strconv.ParseUint(value, 10, 64)
	default:
		return fmt.Errorf("authorization has no tamperable field %q", field)
	}
	if err != nil {
		return fmt.Errorf("tamper %s: %w", field, err)
	}
	return nil
}

// collectState records the current transaction's row on each side.
func (h *Harness) collectState(ctx context.Context, result *Result) error {
	if h.txID == "" {
		return nil
	}
	for _, name := range []string{SideMerchant, SidePayer} {
		tx, err := h.side(name).journal.Load(ctx, h.txID)
		if errors.Is(err, journal.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s journal: %w", name, err)
		}
		result.State[name] = tx
	}
	return nil
}

// state returns the row state for txID, or "" if there is no row.
func (d *device) state(ctx context.Context, txID string) (wallet.TransactionState, error) {
	tx, err := d.journal.Load(ctx, txID)
	if errors.Is(err, journal.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading journal: %w", err)
	}
	return tx.State, nil
}

// outcomeOf names the outcome an error represents. Errors that are not
// an expected failure of the step are returned as runner errors.
func outcomeOf(err error) (string, error) {
	if code := handshake.CodeOf(err); code != "" {
		return string(code), nil
	}
	switch {
	case errors.Is(err, journal.ErrInvalidTransition):
		return OutcomeInvalidTransition, nil
	case errors.Is(err, journal.ErrNotFound):
		return OutcomeNotFound, nil
	}
	return "", err
}
