package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// Scenario describes one handshake run between a merchant and a payer
// device, step by step, with the outcome each step must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy overrides individual risk limits. Unset fields keep the defaults.
	Policy *PolicyOverride `yaml:"policy,omitempty"`

	// ClockStart is the shared clock reading before the first step.
	// Zero means testutil.DefaultEpoch.
	ClockStart uint64 `yaml:"clock_start,omitempty"`

	Merchant wallet.DeviceIdentity `yaml:"merchant"`
	Payer    wallet.DeviceIdentity `yaml:"payer"`

	// Steps run in order. Each step names exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions check the journals once every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// PolicyOverride holds the risk limits a scenario changes.
type PolicyOverride struct {
	MaxPerTransactionCents *int64  `yaml:"max_per_transaction_cents,omitempty"`
	MaxPerDayPerPayerCents *int64  `yaml:"max_per_day_per_payer_cents,omitempty"`
	MaxClockSkewSeconds    *uint64 `yaml:"max_clock_skew_seconds,omitempty"`
	IntentTTLSeconds       *uint64 `yaml:"intent_ttl_seconds,omitempty"`
}

// Apply returns base with the overridden limits replaced.
func (o *PolicyOverride) Apply(base wallet.RiskPolicy) wallet.RiskPolicy {
	if o == nil {
		return base
	}
	if o.MaxPerTransactionCents != nil {
		base.MaxPerTransactionCents = *o.MaxPerTransactionCents
	}
	if o.MaxPerDayPerPayerCents != nil {
		base.MaxPerDayPerPayerCents = *o.MaxPerDayPerPayerCents
	}
	if o.MaxClockSkewSeconds != nil {
		base.MaxClockSkewSeconds = *o.MaxClockSkewSeconds
	}
	if o.IntentTTLSeconds != nil {
		base.IntentTTLSeconds = *o.IntentTTLSeconds
	}
	return base
}

// Step is one action of the flow. Steps without fields are written as
// an empty mapping, e.g. "authorize: {}".
type Step struct {
	// Intent makes the merchant build a new intent. It replaces the
	// current transaction.
	Intent *IntentStep `yaml:"intent,omitempty"`

	// Authorize makes the payer authorize the current intent.
	Authorize *AuthorizeStep `yaml:"authorize,omitempty"`

	// Accept makes the merchant accept the current authorization.
	Accept *AcceptStep `yaml:"accept,omitempty"`

	// AdvanceClock moves the shared clock forward by this many seconds.
	AdvanceClock uint64 `yaml:"advance_clock,omitempty"`

	// Mark moves a journal row to a terminal state, as the
	// synchronization process would.
	Mark *MarkStep `yaml:"mark,omitempty"`

	// Tamper edits the message in flight between the devices.
	Tamper *TamperStep `yaml:"tamper,omitempty"`

	// Expect is the outcome the step must produce. Empty means "ok".
	Expect string `yaml:"expect,omitempty"`
}

// IntentStep is the input to BuildMerchantIntent.
type IntentStep struct {
	AmountCents int64  `yaml:"amount_cents"`
	Currency    string `yaml:"currency"`
}

// AuthorizeStep is the payer's handling of the current intent.
type AuthorizeStep struct {
	// Verify checks the merchant signature before authorizing.
	Verify bool `yaml:"verify,omitempty"`
}

// AcceptStep is the merchant's handling of the current authorization.
type AcceptStep struct {
	// Verify checks the payer signature before accepting.
	Verify bool `yaml:"verify,omitempty"`
}

// MarkStep calls UpdateState on one side's journal for the current
// transaction.
type MarkStep struct {
	Side   string `yaml:"side"`
	State  string `yaml:"state"`
	Reason string `yaml:"reason,omitempty"`
}

// TamperStep overwrites one field of the current intent or authorization.
type TamperStep struct {
	Target string `yaml:"target"`
	Field  string `yaml:"field"`
	Value  string `yaml:"value"`
}

// Sides of the handshake.
const (
	SideMerchant = "merchant"
	SidePayer    = "payer"
)

// Tamper targets.
const (
	TargetIntent        = "intent"
	TargetAuthorization = "authorization"
)

// Step names as they appear in the trace.
const (
	StepIntent       = "intent"
	StepAuthorize    = "authorize"
	StepAccept       = "accept"
	StepAdvanceClock = "advance_clock"
	StepMark         = "mark"
	StepTamper       = "tamper"
)

// Outcomes besides the handshake error codes.
const (
	OutcomeOK                = "ok"
	OutcomeInvalidSignature  = "invalid_signature"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeNotFound          = "not_found"
)

// knownOutcomes lists every value Step.Expect accepts.
var knownOutcomes = map[string]bool{
	OutcomeOK:                                 true,
	OutcomeInvalidSignature:                   true,
	OutcomeInvalidTransition:                  true,
	OutcomeNotFound:                           true,
	string(handshake.CodeInvalidInput):        true,
	string(handshake.CodePolicyDenied):        true,
	string(handshake.CodeExpired):             true,
	string(handshake.CodeUnknownTransaction):  true,
	string(handshake.CodeMismatch):            true,
	string(handshake.CodeJournalFailure):      true,
	string(handshake.CodeCollaboratorFailure): true,
}

// Name returns the trace name of the step's action, or "" if the step
// names no action.
func (s Step) Name() string {
	names := s.actions()
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func (s Step) actions() []string {
	var names []string
	if s.Intent != nil {
		names = append(names, StepIntent)
	}
	if s.Authorize != nil {
		names = append(names, StepAuthorize)
	}
	if s.Accept != nil {
		names = append(names, StepAccept)
	}
	if s.AdvanceClock != 0 {
		names = append(names, StepAdvanceClock)
	}
	if s.Mark != nil {
		names = append(names, StepMark)
	}
	if s.Tamper != nil {
		names = append(names, StepTamper)
	}
	return names
}

// expected returns the outcome the step must produce.
func (s Step) expected() string {
	if s.Expect == "" {
		return OutcomeOK
	}
	return s.Expect
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := validateIdentity(SideMerchant, s.Merchant); err != nil {
		return err
	}
	if err := validateIdentity(SidePayer, s.Payer); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateIdentity(side string, id wallet.DeviceIdentity) error {
	if id.AccountID == "" || id.DeviceID == "" || id.SigningKeyID == "" {
		return fmt.Errorf("%s: account_id, device_id and signing_key_id are required", side)
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch names := step.actions(); len(names) {
	case 0:
		return fmt.Errorf("steps[%d]: no action given", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one action allowed, got %v", index, names)
	}

	if !knownOutcomes[step.expected()] {
		return fmt.Errorf("steps[%d]: unknown expected outcome %q", index, step.Expect)
	}

	if step.Intent != nil && step.Intent.Currency == "" {
		return fmt.Errorf("steps[%d].intent: currency is required", index)
	}

	if m := step.Mark; m != nil {
		if err := validateSide(m.Side); err != nil {
			return fmt.Errorf("steps[%d].mark: %w", index, err)
		}
		if _, err := wallet.ParseTransactionState(m.State); err != nil {
			return fmt.Errorf("steps[%d].mark: %w", index, err)
		}
	}

	if tp := step.Tamper; tp != nil {
		if tp.Target != TargetIntent && tp.Target != TargetAuthorization {
			return fmt.Errorf("steps[%d].tamper: target must be %q or %q", index, TargetIntent, TargetAuthorization)
		}
		if tp.Field == "" {
			return fmt.Errorf("steps[%d].tamper: field is required", index)
		}
	}

	return nil
}

func validateSide(side string) error {
	if side != SideMerchant && side != SidePayer {
		return fmt.Errorf("side must be %q or %q, got %q", SideMerchant, SidePayer, side)
	}
	return nil
}
