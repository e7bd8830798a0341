package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/codec"
	"github.com/roach88/offlinewallet/internal/metrics"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// IntentOptions holds flags for the intent command.
type IntentOptions struct {
	*RootOptions
	Merchant wallet.DeviceIdentity
	amountFlags
}

// IntentOutput is the JSON payload of the intent command.
type IntentOutput struct {
	Intent      wallet.Intent           `json:"intent"`
	Transaction wallet.LocalTransaction `json:"transaction"`
	Envelope    string                  `json:"envelope"`
}

// NewIntentCommand creates the intent command.
func NewIntentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IntentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Build a signed payment intent (merchant)",
		Long: `Build a signed payment intent and record it in the merchant journal.

The envelope printed on stdout is what the merchant shows to the payer,
e.g. as a QR code. Pipe it into "offlinewallet authorize -".

Examples:
  offlinewallet intent --amount 5.60 --currency CNY
  offlinewallet intent --amount-cents 560 --merchant-account shop-42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(opts, cmd)
		},
	}

	addAmountFlags(cmd, &opts.amountFlags)
	addIdentityFlags(cmd, &opts.Merchant, "merchant", defaultMerchant)

	return cmd
}

func runIntent(opts *IntentOptions, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)

	amountCents, currencyCode, err := opts.resolve(s.out)
	if err != nil {
		return err
	}

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	orch, err := s.orchestrator(store)
	if err != nil {
		return err
	}

	intent, tx, err := orch.BuildMerchantIntent(cmd.Context(), opts.Merchant, amountCents, currencyCode)
	s.metrics.ObserveHandshake(metrics.PhaseIntent, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	s.logger.Info("intent created", "tx_id", intent.TxID, "amount_cents", intent.AmountCents, "currency", intent.Currency)

	envelope, err := codec.EncodeIntent(intent, intent.IssuedAt)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}

	s.out.VerboseLog("intent %s for %s %s expires at %d", intent.TxID,
		formatAmount(intent.AmountCents, intent.Currency), intent.Currency, intent.ExpiresAt)
	return s.out.Result(IntentOutput{Intent: intent, Transaction: tx, Envelope: envelope}, envelope, intent.TxID)
}
