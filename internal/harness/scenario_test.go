package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offlinewallet/internal/wallet"
)

const identities = `
merchant:
  account_id: merchant-001
  device_id: m-dev-1
  signing_key_id: merchant-key
  local_counter: 7
payer:
  account_id: payer-001
  device_id: p-dev-1
  signing_key_id: payer-key
  local_counter: 3
`

func TestLoadScenario_HappyPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/happy_path.yaml")
	require.NoError(t, err)

	assert.Equal(t, "happy_path", s.Name)
	assert.Equal(t, wallet.DeviceIdentity{
		AccountID:    "merchant-001",
		DeviceID:     "m-dev-1",
		SigningKeyID: "merchant-key",
		LocalCounter: 7,
	}, s.Merchant)
	assert.Equal(t, uint32(3), s.Payer.LocalCounter)

	require.Len(t, s.Steps, 6)
	require.NotNil(t, s.Steps[0].Intent)
	assert.Equal(t, int64(560), s.Steps[0].Intent.AmountCents)
	assert.Equal(t, "CNY", s.Steps[0].Intent.Currency)
	assert.Equal(t, uint64(5), s.Steps[1].AdvanceClock)
	require.NotNil(t, s.Steps[2].Authorize)
	assert.True(t, s.Steps[2].Authorize.Verify)
	require.NotNil(t, s.Steps[5].Mark)
	assert.Equal(t, "synced", s.Steps[5].Mark.State)

	names := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		names[i] = step.Name()
	}
	assert.Equal(t, []string{"intent", "advance_clock", "authorize", "advance_clock", "accept", "mark"}, names)

	require.Len(t, s.Assertions, 5)
	assert.Len(t, s.Assertions[4].Signed, 3)
}

func TestLoadScenario_AllFixturesParse(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			assert.NoError(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	src := "name: small\ndescription: one intent\n" + identities + "steps:\n  - intent: { amount_cents: 1, currency: USD }\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "small", s.Name)
	assert.Empty(t, s.Assertions)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains string
	}{
		{
			name:     "unknown field",
			src:      "name: x\ndescription: d\nstep: []\n" + identities,
			contains: "field step not found",
		},
		{
			name:     "missing name",
			src:      "description: d\n" + identities + "steps:\n  - advance_clock: 1\n",
			contains: "name is required",
		},
		{
			name:     "missing description",
			src:      "name: x\n" + identities + "steps:\n  - advance_clock: 1\n",
			contains: "description is required",
		},
		{
			name:     "incomplete identity",
			src:      "name: x\ndescription: d\nmerchant: { account_id: m }\nsteps:\n  - advance_clock: 1\n",
			contains: "merchant: account_id, device_id and signing_key_id are required",
		},
		{
			name:     "no steps",
			src:      "name: x\ndescription: d\n" + identities,
			contains: "steps list is required",
		},
		{
			name:     "empty step",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - expect: ok\n",
			contains: "steps[0]: no action given",
		},
		{
			name:     "two actions",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - authorize: {}\n    accept: {}\n",
			contains: "exactly one action allowed",
		},
		{
			name:     "unknown outcome",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - advance_clock: 1\n    expect: boom\n",
			contains: `unknown expected outcome "boom"`,
		},
		{
			name:     "intent without currency",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - intent: { amount_cents: 5 }\n",
			contains: "currency is required",
		},
		{
			name:     "mark bad side",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - mark: { side: bank, state: synced }\n",
			contains: `side must be "merchant" or "payer"`,
		},
		{
			name:     "mark bad state",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - mark: { side: payer, state: settled }\n",
			contains: `unknown transaction state "settled"`,
		},
		{
			name:     "tamper bad target",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - tamper: { target: receipt, field: tx_id, value: z }\n",
			contains: "target must be",
		},
		{
			name:     "tamper without field",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - tamper: { target: intent, value: z }\n",
			contains: "field is required",
		},
		{
			name:     "unknown assertion",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - advance_clock: 1\nassertions:\n  - type: balance\n",
			contains: `unknown assertion type "balance"`,
		},
		{
			name:     "assertion without side",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - advance_clock: 1\nassertions:\n  - type: absent\n",
			contains: "assertions[0]: side must be",
		},
		{
			name:     "negative history count",
			src:      "name: x\ndescription: d\n" + identities + "steps:\n  - advance_clock: 1\nassertions:\n  - type: history_count\n    side: payer\n    count: -1\n",
			contains: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestPolicyOverride_Apply(t *testing.T) {
	base := wallet.DefaultRiskPolicy()
	assert.Equal(t, base, (*PolicyOverride)(nil).Apply(base))

	ttl := uint64(90)
	limit := int64(500)
	got := (&PolicyOverride{IntentTTLSeconds: &ttl, MaxPerTransactionCents: &limit}).Apply(base)

	want := base
	want.IntentTTLSeconds = 90
	want.MaxPerTransactionCents = 500
	assert.Equal(t, want, got)
}
