package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/wallet"
)

func TestLoad_FullPolicy(t *testing.T) {
	p, err := Load("testdata/strict.cue")
	require.NoError(t, err)
	assert.Equal(t, wallet.RiskPolicy{
		MaxPerTransactionCents: 20000,
		MaxPerDayPerPayerCents: 80000,
		MaxClockSkewSeconds:    120,
		IntentTTLSeconds:       60,
	}, p)
}

func TestLoad_PartialTakesDefaults(t *testing.T) {
	p, err := Load("testdata/partial.cue")
	require.NoError(t, err)

	want := wallet.DefaultRiskPolicy()
	want.IntentTTLSeconds = 90
	assert.Equal(t, want, p)
}

func TestLoadBytes_EmptyPolicyIsDefault(t *testing.T) {
	p, err := LoadBytes("empty.cue", []byte("policy: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p, "schema defaults agree with wallet defaults")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load("testdata/invalid.cue")
	require.Error(t, err)

	pe, ok := AsError(err)
	require.True(t, ok, "expected *policy.Error, got %T", err)
	assert.Equal(t, ErrCodeInvalid, pe.Code)
	assert.Contains(t, err.Error(), "max_per_transaction_cents")
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 1)
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantCode string
		contains string
	}{
		{
			name:     "syntax",
			src:      "policy: {",
			wantCode: ErrCodeSyntax,
		},
		{
			name:     "missing policy",
			src:      "limits: {}",
			wantCode: ErrCodeMissing,
			contains: "no top-level policy",
		},
		{
			name:     "unknown field",
			src:      "policy: bogus_limit: 5",
			wantCode: ErrCodeInvalid,
			contains: "bogus_limit",
		},
		{
			name:     "daily below per transaction",
			src:      "policy: {max_per_transaction_cents: 500, max_per_day_per_payer_cents: 400}",
			wantCode: ErrCodeInvalid,
			contains: "max_per_day_per_payer_cents",
		},
		{
			name:     "negative skew",
			src:      "policy: max_clock_skew_seconds: -1",
			wantCode: ErrCodeInvalid,
			contains: "max_clock_skew_seconds",
		},
		{
			name:     "wrong type",
			src:      `policy: intent_ttl_seconds: "thirty"`,
			wantCode: ErrCodeInvalid,
			contains: "intent_ttl_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes("test.cue", []byte(tt.src))
			require.Error(t, err)
			pe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, pe.Code)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.cue")
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRead, pe.Code)
}

func TestFormat_RoundTrip(t *testing.T) {
	want := wallet.RiskPolicy{
		MaxPerTransactionCents: 25000,
		MaxPerDayPerPayerCents: 90000,
		MaxClockSkewSeconds:    45,
		IntentTTLSeconds:       15,
	}

	out, err := Format(want)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\n"))
	assert.Contains(t, string(out), "max_per_transaction_cents")

	got, err := LoadBytes("formatted.cue", out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestError_Format(t *testing.T) {
	e := &Error{Code: ErrCodeMissing, Message: "no policy"}
	assert.Equal(t, "E_POLICY_MISSING: no policy", e.Error())
}
