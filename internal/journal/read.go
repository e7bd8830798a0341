package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/offlinewallet/internal/wallet"
)

const transactionColumns = `tx_id, merchant_account_id, payer_account_id, merchant_device_id, payer_device_id,
	amount_cents, currency, intent_id, authorization_id, merchant_nonce, payer_nonce,
	merchant_counter, payer_counter, state, failure_reason, created_at, updated_at, idempotency_key`

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// Load returns the row for txID, or an error wrapping ErrNotFound.
func (j *SQLiteJournal) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE tx_id = ?`, txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.LocalTransaction{}, fmt.Errorf("load %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return wallet.LocalTransaction{}, fmt.Errorf("load %s: %w", txID, err)
	}
	return tx, nil
}

// List returns rows matching filter, ordered by created_at then tx_id.
//
// Returns an empty slice (not nil) if nothing matches.
func (j *SQLiteJournal) List(ctx context.Context, filter Filter) ([]wallet.LocalTransaction, error) {
	query, args := listQuery(filter, "?")
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []wallet.LocalTransaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// History returns the journal events for txID in write order.
//
// Returns an empty slice (not nil) if the transaction has no events.
func (j *SQLiteJournal) History(ctx context.Context, txID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, event_id, tx_id, op, state, reason, recorded_at
		FROM journal_events
		WHERE tx_id = ?
		ORDER BY seq ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return events, nil
}

// listQuery builds the List statement. placeholder is "?" for SQLite; for
// PostgreSQL pass "$" and positional numbers are appended.
func listQuery(filter Filter, placeholder string) (string, []any) {
	var sb strings.Builder
	var args []any
	next := func() string {
		if placeholder == "$" {
			return fmt.Sprintf("$%d", len(args))
		}
		return placeholder
	}

	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions`)
	if filter.State != "" {
		args = append(args, string(filter.State))
		sb.WriteString(` WHERE state = ` + next())
	}
	sb.WriteString(` ORDER BY created_at ASC, tx_id ASC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(` LIMIT ` + next())
	}
	return sb.String(), args
}

func scanTransaction(row rowScanner) (wallet.LocalTransaction, error) {
	var tx wallet.LocalTransaction
	var state string
	var merchantCounter, payerCounter, createdAt, updatedAt int64
	err := row.Scan(
		&tx.TxID,
		&tx.MerchantAccountID,
		&tx.PayerAccountID,
		&tx.MerchantDeviceID,
		&tx.PayerDeviceID,
		&tx.AmountCents,
		&tx.Currency,
		&tx.IntentID,
		&tx.AuthorizationID,
		&tx.MerchantNonce,
		&tx.PayerNonce,
		&merchantCounter,
		&payerCounter,
		&state,
		&tx.FailureReason,
		&createdAt,
		&updatedAt,
		&tx.IdempotencyKey,
	)
	if err != nil {
		return wallet.LocalTransaction{}, err
	}
	tx.MerchantCounter = uint32(merchantCounter)
	tx.PayerCounter = uint32(payerCounter)
	tx.State = wallet.TransactionState(state)
	tx.CreatedAt = uint64(createdAt)
	tx.UpdatedAt = uint64(updatedAt)
	return tx, nil
}

func scanEvent(row rowScanner) (Event, error) {
	var ev Event
	var op, state string
	var recordedAt int64
	if err := row.Scan(&ev.Seq, &ev.EventID, &ev.TxID, &op, &state, &ev.Reason, &recordedAt); err != nil {
		return Event{}, err
	}
	ev.Op = Op(op)
	ev.State = wallet.TransactionState(state)
	ev.RecordedAt = uint64(recordedAt)
	return ev, nil
}
