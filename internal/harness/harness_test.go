package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offlinewallet/internal/wallet"
)

func mustParse(t *testing.T, steps string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte("name: inline\ndescription: inline scenario\n" + identities + steps))
	require.NoError(t, err)
	return s
}

func TestRun_HappyPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/happy_path.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 6)

	merchant := result.State[SideMerchant]
	assert.Equal(t, wallet.StateSynced, merchant.State)
	assert.Equal(t, "pa-p1", merchant.AuthorizationID)
	assert.Equal(t, "payer-001", merchant.PayerAccountID)
	assert.Equal(t, uint64(1_700_000_007), merchant.UpdatedAt, "mark stamps the shared clock")

	payer := result.State[SidePayer]
	assert.Equal(t, wallet.StateAuthorized, payer.State)
	assert.Equal(t, "payer:tx-m1:pa-p1", payer.IdempotencyKey)
}

func TestRun_OutcomeMismatchFailsButContinues(t *testing.T) {
	s := mustParse(t, `steps:
  - intent: { amount_cents: 20000, currency: CNY }
  - intent: { amount_cents: 100, currency: CNY }
    expect: policy_denied
  - advance_clock: 1
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"steps[0] intent: expected ok, got policy_denied",
		"steps[1] intent: expected policy_denied, got ok",
	}, result.Errors)
	require.Len(t, result.Trace, 3, "every step runs")
	assert.Equal(t, "tx-m1", result.Trace[1].TxID, "a denied intent consumes no ids")
}

func TestRun_PolicyOverride(t *testing.T) {
	s := mustParse(t, `policy:
  max_per_transaction_cents: 50
steps:
  - intent: { amount_cents: 51, currency: CNY }
    expect: policy_denied
  - intent: { amount_cents: 50, currency: CNY }
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace[0].TxID)
	assert.Empty(t, result.Trace[0].State)
	assert.Equal(t, wallet.StateInitiated, result.Trace[1].State)
}

func TestRun_ClockStartAndSkew(t *testing.T) {
	s := mustParse(t, `clock_start: 1000
policy:
  intent_ttl_seconds: 600
  max_clock_skew_seconds: 10
steps:
  - intent: { amount_cents: 100, currency: EUR }
  - advance_clock: 11
  - authorize: {}
    expect: policy_denied
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, uint64(1000), result.Trace[0].Clock)
	assert.Equal(t, "tx-m1|mi-m2|100|EUR|m3|7|1600", result.Trace[0].Signed)
	assert.Equal(t, uint64(1011), result.Trace[2].Clock)
}

func TestRun_TamperedIntentSignature(t *testing.T) {
	s := mustParse(t, `steps:
  - intent: { amount_cents: 560, currency: CNY }
  - tamper: { target: intent, field: amount_cents, value: "1" }
  - authorize: { verify: true }
    expect: invalid_signature
  - authorize: {}
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "tx-m1|mi-m2|1|CNY|p2|3|1700000000", result.Trace[3].Signed,
		"an unverified payer signs whatever it was shown")
}

func TestRun_TamperedTxIDIsUnknown(t *testing.T) {
	s := mustParse(t, `steps:
  - intent: { amount_cents: 560, currency: CNY }
  - authorize: {}
  - tamper: { target: authorization, field: tx_id, value: tx-forged }
  - accept: {}
    expect: unknown_transaction
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MarkOutcomes(t *testing.T) {
	s := mustParse(t, `steps:
  - intent: { amount_cents: 560, currency: CNY }
  - mark: { side: payer, state: rejected }
    expect: not_found
  - mark: { side: merchant, state: authorized }
    expect: invalid_transition
  - mark: { side: merchant, state: expired, reason: ttl }
  - mark: { side: merchant, state: synced }
    expect: invalid_transition
assertions:
  - type: state
    side: merchant
    state: expired
  - type: absent
    side: payer
  - type: history_count
    side: merchant
    count: 2
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "ttl", result.State[SideMerchant].FailureReason)
	assert.Empty(t, result.Trace[1].State, "payer has no row")
}

func TestRun_FailedAssertionsAreCollected(t *testing.T) {
	s := mustParse(t, `steps:
  - intent: { amount_cents: 560, currency: CNY }
assertions:
  - type: state
    side: merchant
    state: synced
  - type: state
    side: payer
    state: authorized
  - type: absent
    side: merchant
  - type: history_count
    side: merchant
    count: 4
  - type: signed
    signed: [nothing]
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Equal(t, "assertion failed: state (merchant): expected synced, actual initiated", result.Errors[0])
	assert.Equal(t, "assertion failed: state (payer): expected authorized, actual no row", result.Errors[1])
	assert.Equal(t, "assertion failed: absent (merchant): expected no row, actual row in state initiated", result.Errors[2])
	assert.Equal(t, "assertion failed: history_count (merchant): expected 4 events, actual 1 events", result.Errors[3])
	assert.Contains(t, result.Errors[4], "assertion failed: signed")
}

func TestRun_RunnerErrors(t *testing.T) {
	tests := []struct {
		name     string
		steps    string
		contains string
	}{
		{
			name:     "authorize before intent",
			steps:    "steps:\n  - authorize: {}\n",
			contains: "steps[0] authorize: no intent to authorize",
		},
		{
			name:     "accept before authorize",
			steps:    "steps:\n  - intent: { amount_cents: 5, currency: CNY }\n  - accept: {}\n",
			contains: "steps[1] accept: no authorization to accept",
		},
		{
			name:     "mark before intent",
			steps:    "steps:\n  - mark: { side: merchant, state: synced }\n",
			contains: "no transaction to mark",
		},
		{
			name:     "tamper unknown field",
			steps:    "steps:\n  - intent: { amount_cents: 5, currency: CNY }\n  - tamper: { target: intent, field: colour, value: red }\n",
			contains: `intent has no tamperable field "colour"`,
		},
		{
			name:     "tamper bad number",
			steps:    "steps:\n  - intent: { amount_cents: 5, currency: CNY }\n  - authorize: {}\n  - tamper: { target: authorization, field: amount_cents, value: lots }\n",
			contains: "tamper amount_cents",
		},
		{
			name:     "tamper without authorization",
			steps:    "steps:\n  - intent: { amount_cents: 5, currency: CNY }\n  - tamper: { target: authorization, field: tx_id, value: z }\n",
			contains: "no authorization to tamper with",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), mustParse(t, tt.steps))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/happy_path.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
