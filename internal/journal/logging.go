package journal

import (
	"context"
	"log/slog"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// loggingJournal logs every journal call at debug level and failures at warn.
type loggingJournal struct {
	next   handshake.Journal
	logger *slog.Logger
}

// WithLogging wraps j so each call is logged to logger.
// A nil logger uses slog.Default().
func WithLogging(j handshake.Journal, logger *slog.Logger) handshake.Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingJournal{next: j, logger: logger}
}

func (l *loggingJournal) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	err := l.next.Save(ctx, tx)
	if err != nil {
		l.logger.Warn("journal save failed", "tx_id", tx.TxID, "state", tx.State, "error", err)
		return err
	}
	l.logger.Debug("journal save", "tx_id", tx.TxID, "state", tx.State, "idempotency_key", tx.IdempotencyKey)
	return nil
}

func (l *loggingJournal) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	tx, err := l.next.Load(ctx, txID)
	if err != nil {
		l.logger.Warn("journal load failed", "tx_id", txID, "error", err)
		return tx, err
	}
	l.logger.Debug("journal load", "tx_id", txID, "state", tx.State)
	return tx, nil
}

func (l *loggingJournal) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	err := l.next.UpdateState(ctx, txID, state, reason)
	if err != nil {
		l.logger.Warn("journal update_state failed", "tx_id", txID, "state", state, "error", err)
		return err
	}
	l.logger.Debug("journal update_state", "tx_id", txID, "state", state, "reason", reason)
	return nil
}
