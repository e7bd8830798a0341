package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/codec"
	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/metrics"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// AuthorizeOptions holds flags for the authorize command.
type AuthorizeOptions struct {
	*RootOptions
	Payer wallet.DeviceIdentity
	In    string

	// VerifyMerchantKey, when set, checks the intent's merchant signature
	// against this key id before authorizing.
	VerifyMerchantKey string
}

// AuthorizeOutput is the JSON payload of the authorize command.
type AuthorizeOutput struct {
	Authorization wallet.Authorization    `json:"authorization"`
	Transaction   wallet.LocalTransaction `json:"transaction"`
	Envelope      string                  `json:"envelope"`
}

// NewAuthorizeCommand creates the authorize command.
func NewAuthorizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "authorize [intent-envelope|-]",
		Short: "Authorize a payment intent (payer)",
		Long: `Check a merchant's payment intent against the payer's risk policy,
sign an authorization and record it in the payer journal.

The intent envelope is read from the argument, from stdin when the
argument is "-" or missing, or from --in.

Exit codes:
  0 - Authorization issued
  1 - Intent refused (expired, over the limit, clock skew, bad signature)
  2 - Command error (unreadable envelope, journal unavailable, etc.)

Examples:
  offlinewallet intent --amount 5.60 | offlinewallet authorize --verify-merchant-key merchant-key -
  offlinewallet authorize --in intent.txt --payer-account payer-7`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorize(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "read the intent envelope from this file")
	cmd.Flags().StringVar(&opts.VerifyMerchantKey, "verify-merchant-key", "", "verify the merchant signature with this key id")
	addIdentityFlags(cmd, &opts.Payer, "payer", defaultPayer)

	return cmd
}

func runAuthorize(opts *AuthorizeOptions, args []string, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)

	text, err := readInput(cmd, args, opts.In)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	intent, err := codec.DecodeIntent(text)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	s.out.VerboseLog("intent %s from %s for %s %s", intent.TxID, intent.MerchantAccountID,
		formatAmount(intent.AmountCents, intent.Currency), intent.Currency)

	if opts.VerifyMerchantKey != "" {
		signer, err := s.keyring()
		if err != nil {
			return err
		}
		if !handshake.VerifyIntent(signer, intent, opts.VerifyMerchantKey) {
			return s.out.Fail(ExitFailure, ErrCodeSignature, "merchant signature does not verify",
				map[string]string{"tx_id": intent.TxID, "key_id": opts.VerifyMerchantKey})
		}
	}

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	orch, err := s.orchestrator(store)
	if err != nil {
		return err
	}

	auth, tx, err := orch.BuildPayerAuthorization(cmd.Context(), opts.Payer, intent)
	s.metrics.ObserveHandshake(metrics.PhaseAuthorization, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	s.logger.Info("intent authorized", "tx_id", auth.TxID, "authorization_id", auth.AuthorizationID)

	envelope, err := codec.EncodeAuthorization(auth, auth.AuthorizedAt)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	return s.out.Result(AuthorizeOutput{Authorization: auth, Transaction: tx, Envelope: envelope}, envelope, auth.TxID)
}
