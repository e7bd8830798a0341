package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/journal"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// JournalListOptions holds flags for journal list.
type JournalListOptions struct {
	*RootOptions
	State string
	Limit int
}

// JournalMarkOptions holds flags for journal mark.
type JournalMarkOptions struct {
	*RootOptions
	Reason string
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and settle journal rows",
		Long: `Inspect the local transaction journal.

"mark" is the settlement surface: it moves a row to synced, rejected or
expired once the backend has decided. Rows never move backwards and a
terminal row never changes again.`,
	}

	cmd.AddCommand(newJournalShowCommand(rootOpts))
	cmd.AddCommand(newJournalListCommand(rootOpts))
	cmd.AddCommand(newJournalHistoryCommand(rootOpts))
	cmd.AddCommand(newJournalMarkCommand(rootOpts))

	return cmd
}

func newJournalShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <tx-id>",
		Short:         "Show one transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(rootOpts, args[0], cmd)
		},
	}
}

func newJournalListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalListOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, oldest first",
		Example: `  offlinewallet journal list --state pending_sync
  offlinewallet journal list --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.State, "state", "", "only rows in this state")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "at most this many rows (0 for all)")
	return cmd
}

func newJournalHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <tx-id>",
		Short:         "Show every recorded change of one transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalHistory(rootOpts, args[0], cmd)
		},
	}
}

func newJournalMarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalMarkOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "mark <tx-id> <synced|rejected|expired>",
		Short:         "Record the settlement outcome of a transaction",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalMark(opts, args[0], args[1], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "failure reason stored with the row")
	return cmd
}

func runJournalShow(opts *RootOptions, txID string, cmd *cobra.Command) (err error) {
	s := newSession(opts, cmd)
	defer s.finish(&err)

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	tx, err := store.Load(cmd.Context(), txID)
	if err != nil {
		return failJournal(s.out, txID, err)
	}
	return s.out.Result(tx, transactionText(tx), tx.TxID)
}

func runJournalList(opts *JournalListOptions, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)

	filter := journal.Filter{Limit: opts.Limit}
	if opts.State != "" {
		filter.State, err = wallet.ParseTransactionState(opts.State)
		if err != nil {
			return s.out.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}
	if opts.Limit < 0 {
		return s.out.Fail(ExitCommandError, ErrCodeGeneric, "limit must not be negative", nil)
	}

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	rows, err := store.List(cmd.Context(), filter)
	if err != nil {
		return failJournal(s.out, "", err)
	}

	var b strings.Builder
	if len(rows) == 0 {
		b.WriteString("no transactions")
	}
	for i, tx := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-24s %-12s %10s %s", tx.TxID, tx.State, formatAmount(tx.AmountCents, tx.Currency), tx.Currency)
	}
	return s.out.Result(rows, b.String(), "")
}

func runJournalHistory(opts *RootOptions, txID string, cmd *cobra.Command) (err error) {
	s := newSession(opts, cmd)
	defer s.finish(&err)

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	events, err := store.History(cmd.Context(), txID)
	if err != nil {
		return failJournal(s.out, txID, err)
	}
	if len(events) == 0 {
		return s.out.Fail(ExitCommandError, ErrCodeNotFound, "no history for "+txID, map[string]string{"tx_id": txID})
	}

	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%3d %-12s %-12s %d", ev.Seq, ev.Op, ev.State, ev.RecordedAt)
		if ev.Reason != "" {
			fmt.Fprintf(&b, " %s", ev.Reason)
		}
	}
	return s.out.Result(events, b.String(), txID)
}

func runJournalMark(opts *JournalMarkOptions, txID, stateName string, cmd *cobra.Command) (err error) {
	s := newSession(opts.RootOptions, cmd)
	defer s.finish(&err)

	state, err := wallet.ParseTransactionState(stateName)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	store, err := s.openJournal(cmd.Context())
	if err != nil {
		return err
	}
	j := s.metrics.InstrumentJournal(journal.WithLogging(store, s.logger))
	if err := j.UpdateState(cmd.Context(), txID, state, opts.Reason); err != nil {
		return failJournal(s.out, txID, err)
	}

	tx, err := store.Load(cmd.Context(), txID)
	if err != nil {
		return failJournal(s.out, txID, err)
	}
	s.logger.Info("transaction marked", "tx_id", txID, "state", state)
	return s.out.Result(tx, fmt.Sprintf("%s -> %s", txID, tx.State), txID)
}

// failJournal reports a journal error under the matching CLI code.
func failJournal(f *OutputFormatter, txID string, err error) error {
	var details map[string]string
	if txID != "" {
		details = map[string]string{"tx_id": txID}
	}
	var te *journal.TransitionError
	switch {
	case errors.Is(err, journal.ErrNotFound):
		return f.Fail(ExitCommandError, ErrCodeNotFound, "transaction not found: "+txID, details)
	case errors.As(err, &te):
		return f.Fail(ExitFailure, ErrCodeTransition, te.Error(), details)
	}
	return f.Fail(ExitCommandError, ErrCodeJournal, err.Error(), details)
}

func transactionText(tx wallet.LocalTransaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tx:          %s\n", tx.TxID)
	fmt.Fprintf(&b, "state:       %s\n", tx.State)
	if tx.FailureReason != "" {
		fmt.Fprintf(&b, "reason:      %s\n", tx.FailureReason)
	}
	fmt.Fprintf(&b, "amount:      %s %s\n", formatAmount(tx.AmountCents, tx.Currency), tx.Currency)
	fmt.Fprintf(&b, "merchant:    %s (%s)\n", tx.MerchantAccountID, tx.MerchantDeviceID)
	if tx.PayerAccountID != "" {
		fmt.Fprintf(&b, "payer:       %s (%s)\n", tx.PayerAccountID, tx.PayerDeviceID)
	}
	fmt.Fprintf(&b, "intent:      %s\n", tx.IntentID)
	if tx.AuthorizationID != "" {
		fmt.Fprintf(&b, "auth:        %s\n", tx.AuthorizationID)
	}
	fmt.Fprintf(&b, "created_at:  %d\n", tx.CreatedAt)
	fmt.Fprintf(&b, "updated_at:  %d", tx.UpdatedAt)
	return b.String()
}
