package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/codec"
	"github.com/roach88/offlinewallet/internal/config"
	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/metrics"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Merchant wallet.DeviceIdentity
	Payer    wallet.DeviceIdentity
	amountFlags

	// PayerDB is a SQLite file for the payer journal. Empty keeps the
	// payer journal in memory.
	PayerDB string
}

// DemoOutput is the JSON payload of the demo command.
type DemoOutput struct {
	Intent        wallet.Intent           `json:"intent"`
	Authorization wallet.Authorization    `json:"authorization"`
	Receipt       wallet.Receipt          `json:"receipt"`
	Merchant      wallet.LocalTransaction `json:"merchant_transaction"`
	Payer         wallet.LocalTransaction `json:"payer_transaction"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a complete handshake between two local devices",
		Long: `Run intent, authorization and acceptance in one process.

The merchant uses the configured journal; the payer uses its own journal
(in memory unless --payer-db is given). Messages pass between the two
sides as envelopes, and each side verifies the other's signature, just as
two separate devices would.

Examples:
  offlinewallet demo --amount 5.60 --currency CNY
  offlinewallet demo --amount-cents 1200 --journal-driver memory --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	addAmountFlags(cmd, &opts.amountFlags)
	addIdentityFlags(cmd, &opts.Merchant, "merchant", defaultMerchant)
	addIdentityFlags(cmd, &opts.Payer, "payer", defaultPayer)
	cmd.Flags().StringVar(&opts.PayerDB, "payer-db", "", "SQLite file for the payer journal (default in memory)")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)
	ctx := cmd.Context()

	amountCents, currencyCode, err := opts.resolve(s.out)
	if err != nil {
		return err
	}

	merchantStore, err := s.openJournal(ctx)
	if err != nil {
		return err
	}
	payerDriver := config.DriverMemory
	if opts.PayerDB != "" {
		payerDriver = config.DriverSQLite
	}
	payerStore, err := s.openStore(ctx, payerDriver, opts.PayerDB, "")
	if err != nil {
		return err
	}

	merchantSide, err := s.orchestrator(merchantStore)
	if err != nil {
		return err
	}
	payerSide, err := s.orchestrator(payerStore)
	if err != nil {
		return err
	}
	signer, err := s.keyring()
	if err != nil {
		return err
	}

	// Merchant: build the intent and hand it over.
	intent, _, err := merchantSide.BuildMerchantIntent(ctx, opts.Merchant, amountCents, currencyCode)
	s.metrics.ObserveHandshake(metrics.PhaseIntent, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	intentText, err := codec.EncodeIntent(intent, intent.IssuedAt)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	s.out.VerboseLog("merchant -> payer: %s", intentText)

	// Payer: check the merchant's signature, then authorize.
	received, err := codec.DecodeIntent(intentText)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	if !handshake.VerifyIntent(signer, received, opts.Merchant.SigningKeyID) {
		return s.out.Fail(ExitFailure, ErrCodeSignature, "merchant signature does not verify", map[string]string{"tx_id": received.TxID})
	}
	auth, payerTx, err := payerSide.BuildPayerAuthorization(ctx, opts.Payer, received)
	s.metrics.ObserveHandshake(metrics.PhaseAuthorization, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	authText, err := codec.EncodeAuthorization(auth, auth.AuthorizedAt)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	s.out.VerboseLog("payer -> merchant: %s", authText)

	// Merchant: check the payer's signature, then accept.
	gotAuth, err := codec.DecodeAuthorization(authText)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	if !handshake.VerifyAuthorization(signer, gotAuth, opts.Payer.SigningKeyID) {
		return s.out.Fail(ExitFailure, ErrCodeSignature, "payer signature does not verify", map[string]string{"tx_id": gotAuth.TxID})
	}
	receipt, merchantTx, err := merchantSide.AcceptAuthorization(ctx, opts.Merchant, gotAuth)
	s.metrics.ObserveHandshake(metrics.PhaseAcceptance, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	if !handshake.VerifyReceipt(signer, receipt, gotAuth.AuthorizationID, opts.Merchant.SigningKeyID) {
		return s.out.Fail(ExitFailure, ErrCodeSignature, "receipt signature does not verify", map[string]string{"tx_id": receipt.TxID})
	}
	s.logger.Info("handshake complete", "tx_id", receipt.TxID, "receipt_id", receipt.ReceiptID)

	out := DemoOutput{
		Intent:        intent,
		Authorization: auth,
		Receipt:       receipt,
		Merchant:      merchantTx,
		Payer:         payerTx,
	}
	return s.out.Result(out, demoText(out), receipt.TxID)
}

func demoText(d DemoOutput) string {
	var b strings.Builder
	fmt.Fprintln(&b, "Handshake complete")
	fmt.Fprintf(&b, "  tx:       %s\n", d.Receipt.TxID)
	fmt.Fprintf(&b, "  amount:   %s %s\n", formatAmount(d.Receipt.AmountCents, d.Receipt.Currency), d.Receipt.Currency)
	fmt.Fprintf(&b, "  merchant: %s (%s) -> %s\n", d.Merchant.MerchantAccountID, d.Merchant.MerchantDeviceID, d.Merchant.State)
	fmt.Fprintf(&b, "  payer:    %s (%s) -> %s\n", d.Payer.PayerAccountID, d.Payer.PayerDeviceID, d.Payer.State)
	fmt.Fprintf(&b, "  receipt:  %s", d.Receipt.ReceiptID)
	return b.String()
}
