package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/codec"
	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/metrics"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// AcceptOptions holds flags for the accept command.
type AcceptOptions struct {
	*RootOptions
	Merchant wallet.DeviceIdentity
	In       string

	// VerifyPayerKey, when set, checks the payer signature against this
	// key id before accepting.
	VerifyPayerKey string
}

// AcceptOutput is the JSON payload of the accept command.
type AcceptOutput struct {
	Receipt     wallet.Receipt          `json:"receipt"`
	Transaction wallet.LocalTransaction `json:"transaction"`
	Envelope    string                  `json:"envelope"`
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AcceptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "accept [authorization-envelope|-]",
		Short: "Accept a payer authorization and issue a receipt (merchant)",
		Long: `Cross-check a payer authorization against the merchant journal, move the
transaction to pending_sync and print a signed receipt envelope.

Exit codes:
  0 - Receipt issued
  1 - Authorization refused (unknown transaction, mismatch, bad signature)
  2 - Command error (unreadable envelope, journal unavailable, etc.)

If the journal fails while accepting, the outcome is unknown: check the
row with "offlinewallet journal show <tx-id>" before retrying.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccept(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "read the authorization envelope from this file")
	cmd.Flags().StringVar(&opts.VerifyPayerKey, "verify-payer-key", "", "verify the payer signature with this key id")
	addIdentityFlags(cmd, &opts.Merchant, "merchant", defaultMerchant)

	return cmd
}

func runAccept(opts *AcceptOptions, args []string, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)

	text, err := readInput(cmd, args, opts.In)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	auth, err := codec.DecodeAuthorization(text)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}

	if opts.VerifyPayerKey != "" {
		signer, err := s.keyring()
		if err != nil {
			return err
		}
		if !handshake.VerifyAuthorization(signer, auth, opts.VerifyPayerKey) {
			return s.out.Fail(ExitFailure, ErrCodeSignature, "payer signature does not verify",
				map[string]string{"tx_id": auth.TxID, "key_id": opts.VerifyPayerKey})
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

	receipt, tx, err := orch.AcceptAuthorization(cmd.Context(), opts.Merchant, auth)
	s.metrics.ObserveHandshake(metrics.PhaseAcceptance, err)
	if err != nil {
		return failHandshake(s.out, err)
	}
	s.logger.Info("authorization accepted", "tx_id", receipt.TxID, "receipt_id", receipt.ReceiptID)

	envelope, err := codec.EncodeReceipt(receipt, receipt.CreatedAt)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeEnvelope, err.Error(), nil)
	}
	return s.out.Result(AcceptOutput{Receipt: receipt, Transaction: tx, Envelope: envelope}, envelope, receipt.TxID)
}
