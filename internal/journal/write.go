package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// Save upserts tx by tx_id and appends a history event.
// Uses ON CONFLICT(tx_id) DO UPDATE, so repeated saves keep a single row
// holding the latest values.
func (j *SQLiteJournal) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	if tx.TxID == "" {
		return fmt.Errorf("save transaction: empty tx_id")
	}

	sqlTx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save transaction: begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions
		(tx_id, merchant_account_id, payer_account_id, merchant_device_id, payer_device_id,
		 amount_cents, currency, intent_id, authorization_id, merchant_nonce, payer_nonce,
		 merchant_counter, payer_counter, state, failure_reason, created_at, updated_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id) DO UPDATE SET
			merchant_account_id = excluded.merchant_account_id,
			payer_account_id    = excluded.payer_account_id,
			merchant_device_id  = excluded.merchant_device_id,
			payer_device_id     = excluded.payer_device_id,
			amount_cents        = excluded.amount_cents,
			currency            = excluded.currency,
			intent_id           = excluded.intent_id,
			authorization_id    = excluded.authorization_id,
			merchant_nonce      = excluded.merchant_nonce,
			payer_nonce         = excluded.payer_nonce,
			merchant_counter    = excluded.merchant_counter,
			payer_counter       = excluded.payer_counter,
			state               = excluded.state,
			failure_reason      = excluded.failure_reason,
			created_at          = excluded.created_at,
			updated_at          = excluded.updated_at,
			idempotency_key     = excluded.idempotency_key
	`,
		tx.TxID,
		tx.MerchantAccountID,
		tx.PayerAccountID,
		tx.MerchantDeviceID,
		tx.PayerDeviceID,
		tx.AmountCents,
		tx.Currency,
		tx.IntentID,
		tx.AuthorizationID,
		tx.MerchantNonce,
		tx.PayerNonce,
		int64(tx.MerchantCounter),
		int64(tx.PayerCounter),
		string(tx.State),
		tx.FailureReason,
		int64(tx.CreatedAt),
		int64(tx.UpdatedAt),
		tx.IdempotencyKey,
	)
	if err != nil {
		return fmt.Errorf("save transaction: upsert: %w", err)
	}

	if err := j.appendEvent(ctx, sqlTx, tx.TxID, OpSave, tx.State, tx.FailureReason); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("save transaction: commit: %w", err)
	}
	return nil
}

// UpdateState moves a non-terminal row to a terminal state and records
// reason as the row's failure reason.
//
// Returns ErrNotFound if the row does not exist and ErrInvalidTransition
// (as a *TransitionError) if the move is not allowed.
func (j *SQLiteJournal) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	sqlTx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update state: begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	var current string
	err = sqlTx.QueryRowContext(ctx, `SELECT state FROM transactions WHERE tx_id = ?`, txID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update state %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update state: select: %w", err)
	}
	if err := checkTransition(wallet.TransactionState(current), state); err != nil {
		return err
	}

	now := j.opts.clock.NowUnixSeconds()
	_, err = sqlTx.ExecContext(ctx, `
		UPDATE transactions
		SET state = ?, failure_reason = ?, updated_at = ?
		WHERE tx_id = ?
	`, string(state), reason, int64(now), txID)
	if err != nil {
		return fmt.Errorf("update state: update: %w", err)
	}

	if err := j.appendEvent(ctx, sqlTx, txID, OpUpdateState, state, reason); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("update state: commit: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) appendEvent(ctx context.Context, sqlTx *sql.Tx, txID string, op Op, state wallet.TransactionState, reason string) error {
	_, err := sqlTx.ExecContext(ctx, `
		INSERT INTO journal_events (event_id, tx_id, op, state, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.opts.ids.Generate(), txID, string(op), string(state), reason, int64(j.opts.clock.NowUnixSeconds()))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
