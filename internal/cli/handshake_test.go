package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offlinewallet/internal/codec"
	"github.com/roach88/offlinewallet/internal/journal"
	"github.com/roach88/offlinewallet/internal/testutil"
	"github.com/roach88/offlinewallet/internal/wallet"
)

func TestDemo_Text(t *testing.T) {
	cleanEnv(t)

	out, _, err := execute(t, testOptions(), "", "demo", "--amount", "5.60", "--journal-driver", "memory")
	require.NoError(t, err)

	want := `Handshake complete
  tx:       tx-x1
  amount:   5.60 CNY
  merchant: merchant-001 (m-dev-1) -> pending_sync
  payer:    payer-001 (p-dev-1) -> authorized
  receipt:  r-x6
`
	assert.Equal(t, want, out)
}

func TestDemo_JSON(t *testing.T) {
	cleanEnv(t)

	out, _, err := execute(t, testOptions(), "", "demo", "--amount-cents", "1200", "--currency", "usd",
		"--journal-driver", "memory", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status  string     `json:"status"`
		Data    DemoOutput `json:"data"`
		TraceID string     `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tx-x1", resp.TraceID)

	d := resp.Data
	assert.Equal(t, int64(1200), d.Intent.AmountCents)
	assert.Equal(t, "USD", d.Intent.Currency)
	assert.Equal(t, "pa-x4", d.Authorization.AuthorizationID)
	assert.Equal(t, wallet.StatePendingSync, d.Receipt.Status)
	assert.Equal(t, wallet.StatePendingSync, d.Merchant.State)
	assert.Equal(t, "pa-x4", d.Merchant.AuthorizationID)
	assert.Equal(t, wallet.StateAuthorized, d.Payer.State)
	assert.Equal(t, testutil.DefaultEpoch+30, d.Intent.ExpiresAt)
}

func TestDemo_PayerJournalOnDisk(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	merchantDB := filepath.Join(dir, "merchant.db")
	payerDB := filepath.Join(dir, "payer.db")

	_, _, err := execute(t, testOptions(), "", "demo", "--amount", "1",
		"--journal-path", merchantDB, "--payer-db", payerDB)
	require.NoError(t, err)

	out, _, err := execute(t, testOptions(), "", "journal", "show", "tx-x1", "--journal-path", payerDB)
	require.NoError(t, err)
	assert.Contains(t, out, "state:       authorized")
	assert.Contains(t, out, "payer:       payer-001 (p-dev-1)")

	out, _, err = execute(t, testOptions(), "", "journal", "show", "tx-x1", "--journal-path", merchantDB)
	require.NoError(t, err)
	assert.Contains(t, out, "state:       pending_sync")
}

func TestDemo_Metrics(t *testing.T) {
	cleanEnv(t)

	_, errOut, err := execute(t, testOptions(), "", "demo", "--amount", "1", "--journal-driver", "memory", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, errOut, `offlinewallet_handshake_total{code="ok",phase="intent"} 1`)
	assert.Contains(t, errOut, `offlinewallet_handshake_total{code="ok",phase="acceptance"} 1`)
}

func TestDemo_Refusals(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"over the limit", []string{"--amount", "200"}, ExitFailure, "Error [policy_denied]: amount violates policy"},
		{"zero amount", []string{"--amount-cents", "0"}, ExitFailure, "Error [policy_denied]"},
		{"too precise", []string{"--amount", "5.601"}, ExitCommandError, "Error [E006]"},
		{"unknown currency", []string{"--amount", "1", "--currency", "QQQ"}, ExitCommandError, "Error [E007]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			args := append([]string{"demo", "--journal-driver", "memory"}, tt.args...)
			out, _, err := execute(t, testOptions(), "", args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestDemo_AmountRequired(t *testing.T) {
	cleanEnv(t)

	_, _, err := execute(t, testOptions(), "", "demo", "--journal-driver", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")

	_, _, err = execute(t, testOptions(), "", "demo", "--journal-driver", "memory", "--amount", "1", "--amount-cents", "100")
	require.Error(t, err)
}

func TestDemo_StricterPolicyFile(t *testing.T) {
	cleanEnv(t)
	policyFile := filepath.Join(t.TempDir(), "tight.cue")
	require.NoError(t, os.WriteFile(policyFile, []byte("policy: max_per_transaction_cents: 100\n"), 0o644))

	out, _, err := execute(t, testOptions(), "", "demo", "--amount", "1.01", "--journal-driver", "memory", "--policy", policyFile)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "policy_denied")
}

// TestHandshake_AcrossInvocations passes envelopes between separate
// merchant and payer journals the way two devices would.
func TestHandshake_AcrossInvocations(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	merchantDB := filepath.Join(dir, "merchant.db")
	payerDB := filepath.Join(dir, "payer.db")
	opts := testOptions()

	intentText, _, err := execute(t, opts, "", "intent", "--amount", "5.60", "--journal-path", merchantDB)
	require.NoError(t, err)
	intent, err := codec.DecodeIntent(strings.TrimSpace(intentText))
	require.NoError(t, err)
	assert.Equal(t, "tx-x1", intent.TxID)
	assert.Equal(t, int64(560), intent.AmountCents)

	authText, _, err := execute(t, opts, intentText, "authorize", "-",
		"--journal-path", payerDB, "--verify-merchant-key", "merchant-key")
	require.NoError(t, err)
	auth, err := codec.DecodeAuthorization(strings.TrimSpace(authText))
	require.NoError(t, err)
	assert.Equal(t, "pa-x4", auth.AuthorizationID)

	authFile := filepath.Join(dir, "auth.txt")
	require.NoError(t, os.WriteFile(authFile, []byte(authText), 0o644))
	receiptText, _, err := execute(t, opts, "", "accept", "--in", authFile,
		"--journal-path", merchantDB, "--verify-payer-key", "payer-key")
	require.NoError(t, err)
	receipt, err := codec.DecodeReceipt(strings.TrimSpace(receiptText))
	require.NoError(t, err)
	assert.Equal(t, "r-x6", receipt.ReceiptID)
	assert.Equal(t, wallet.StatePendingSync, receipt.Status)

	out, _, err := execute(t, opts, "", "journal", "list", "--state", "pending_sync", "--journal-path", merchantDB)
	require.NoError(t, err)
	assert.Contains(t, out, "tx-x1")
	assert.Contains(t, out, "5.60 CNY")

	out, _, err = execute(t, opts, "", "journal", "mark", "tx-x1", "synced", "--journal-path", merchantDB)
	require.NoError(t, err)
	assert.Equal(t, "tx-x1 -> synced\n", out)

	out, _, err = execute(t, opts, "", "journal", "history", "tx-x1", "--journal-path", merchantDB, "--format", "json")
	require.NoError(t, err)
	var history struct {
		Data []journal.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Data, 3)
	assert.Equal(t, wallet.StateInitiated, history.Data[0].State)
	assert.Equal(t, wallet.StatePendingSync, history.Data[1].State)
	assert.Equal(t, wallet.StateSynced, history.Data[2].State)

	// Synced is terminal.
	out, _, err = execute(t, opts, "", "journal", "mark", "tx-x1", "rejected", "--journal-path", merchantDB)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E012]")
}

func TestAuthorize_WrongMerchantKey(t *testing.T) {
	cleanEnv(t)
	opts := testOptions()

	intentText, _, err := execute(t, opts, "", "intent", "--amount", "1", "--journal-driver", "memory")
	require.NoError(t, err)

	out, _, err := execute(t, opts, intentText, "authorize", "--journal-driver", "memory", "--verify-merchant-key", "someone-else")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E008]")
}

func TestAuthorize_ExpiredIntent(t *testing.T) {
	cleanEnv(t)
	clock := testutil.NewManualClock()
	opts := &RootOptions{Clock: clock, Random: testutil.NewSequenceRandom()}

	intentText, _, err := execute(t, opts, "", "intent", "--amount", "1", "--journal-driver", "memory")
	require.NoError(t, err)

	clock.Advance(31)
	out, _, err := execute(t, opts, intentText, "authorize", "--journal-driver", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [expired]: intent expired")
}

func TestAuthorize_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantOut string
	}{
		{"empty stdin", "", nil, "Error [E003]"},
		{"not an envelope", "", []string{"garbage"}, "Error [E004]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			args := append([]string{"authorize", "--journal-driver", "memory"}, tt.args...)
			out, _, err := execute(t, testOptions(), tt.stdin, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestAccept_WrongEnvelopeType(t *testing.T) {
	cleanEnv(t)
	opts := testOptions()

	intentText, _, err := execute(t, opts, "", "intent", "--amount", "1", "--journal-driver", "memory")
	require.NoError(t, err)

	out, _, err := execute(t, opts, intentText, "accept", "--journal-driver", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestAccept_UnknownTransaction(t *testing.T) {
	cleanEnv(t)
	opts := testOptions()

	intentText, _, err := execute(t, opts, "", "intent", "--amount", "1", "--journal-driver", "memory")
	require.NoError(t, err)
	authText, _, err := execute(t, opts, intentText, "authorize", "--journal-driver", "memory")
	require.NoError(t, err)

	// A fresh memory journal has never seen the intent.
	out, _, err := execute(t, opts, authText, "accept", "--journal-driver", "memory", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unknown_transaction", resp.Error.Code)
}
