package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// PostgresJournal stores the journal in PostgreSQL. Used by back-office
// tooling that replays device journals; the semantics match SQLiteJournal.
type PostgresJournal struct {
	pool *pgxpool.Pool
	opts options
}

var _ handshake.Journal = (*PostgresJournal)(nil)

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresJournal, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresJournal{pool: pool, opts: applyOptions(opts)}, nil
}

// Close releases the connection pool.
func (j *PostgresJournal) Close() error {
	if j.pool != nil {
		j.pool.Close()
	}
	return nil
}

// Save upserts tx by tx_id and appends a history event.
func (j *PostgresJournal) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	if tx.TxID == "" {
		return fmt.Errorf("save transaction: empty tx_id")
	}

	pgTx, err := j.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("save transaction: begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx)

	_, err = pgTx.Exec(ctx, `
		INSERT INTO transactions
		(tx_id, merchant_account_id, payer_account_id, merchant_device_id, payer_device_id,
		 amount_cents, currency, intent_id, authorization_id, merchant_nonce, payer_nonce,
		 merchant_counter, payer_counter, state, failure_reason, created_at, updated_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (tx_id) DO UPDATE SET
			merchant_account_id = EXCLUDED.merchant_account_id,
			payer_account_id    = EXCLUDED.payer_account_id,
			merchant_device_id  = EXCLUDED.merchant_device_id,
			payer_device_id     = EXCLUDED.payer_device_id,
			amount_cents        = EXCLUDED.amount_cents,
			currency            = EXCLUDED.currency,
			intent_id           = EXCLUDED.intent_id,
			authorization_id    = EXCLUDED.authorization_id,
			merchant_nonce      = EXCLUDED.merchant_nonce,
			payer_nonce         = EXCLUDED.payer_nonce,
			merchant_counter    = EXCLUDED.merchant_counter,
			payer_counter       = EXCLUDED.payer_counter,
			state               = EXCLUDED.state,
			failure_reason      = EXCLUDED.failure_reason,
			created_at          = EXCLUDED.created_at,
			updated_at          = EXCLUDED.updated_at,
			idempotency_key     = EXCLUDED.idempotency_key
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

	if err := j.appendEvent(ctx, pgTx, tx.TxID, OpSave, tx.State, tx.FailureReason); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("save transaction: commit: %w", err)
	}
	return nil
}

// Load returns the row for txID, or an error wrapping ErrNotFound.
func (j *PostgresJournal) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	row := j.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE tx_id = $1`, txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.LocalTransaction{}, fmt.Errorf("load %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return wallet.LocalTransaction{}, fmt.Errorf("load %s: %w", txID, err)
	}
	return tx, nil
}

// UpdateState moves a non-terminal row to a terminal state. The row is
// locked with SELECT ... FOR UPDATE so concurrent updates serialize.
func (j *PostgresJournal) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	pgTx, err := j.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("update state: begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx)

	var current string
	err = pgTx.QueryRow(ctx, `SELECT state FROM transactions WHERE tx_id = $1 FOR UPDATE`, txID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update state %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update state: select: %w", err)
	}
	if err := checkTransition(wallet.TransactionState(current), state); err != nil {
		return err
	}

	now := j.opts.clock.NowUnixSeconds()
	_, err = pgTx.Exec(ctx, `
		UPDATE transactions
		SET state = $1, failure_reason = $2, updated_at = $3
		WHERE tx_id = $4
	`, string(state), reason, int64(now), txID)
	if err != nil {
		return fmt.Errorf("update state: update: %w", err)
	}

	if err := j.appendEvent(ctx, pgTx, txID, OpUpdateState, state, reason); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("update state: commit: %w", err)
	}
	return nil
}

// List returns rows matching filter, ordered by created_at then tx_id.
func (j *PostgresJournal) List(ctx context.Context, filter Filter) ([]wallet.LocalTransaction, error) {
	query, args := listQuery(filter, "$")
	rows, err := j.pool.Query(ctx, query, args...)
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
func (j *PostgresJournal) History(ctx context.Context, txID string) ([]Event, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT seq, event_id, tx_id, op, state, reason, recorded_at
		FROM journal_events
		WHERE tx_id = $1
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

func (j *PostgresJournal) appendEvent(ctx context.Context, pgTx pgx.Tx, txID string, op Op, state wallet.TransactionState, reason string) error {
	_, err := pgTx.Exec(ctx, `
		INSERT INTO journal_events (event_id, tx_id, op, state, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, j.opts.ids.Generate(), txID, string(op), string(state), reason, int64(j.opts.clock.NowUnixSeconds()))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
