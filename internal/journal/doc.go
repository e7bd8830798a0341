// Package journal provides durable storage for LocalTransaction rows.
//
// Every implementation satisfies handshake.Journal:
//   - Save: upsert by tx_id; saving the same id twice keeps one row
//     holding the latest values
//   - Load: returns handshake.ErrNotFound when no row exists
//   - UpdateState: moves a non-terminal row to a terminal state; used by
//     the synchronization process, never by the orchestrator
//
// Each Save and UpdateState also appends a row to journal_events, an
// append-only history the synchronization side reads for its audit trail.
//
// # Implementations
//
//   - SQLiteJournal (Open): single-writer SQLite file, the on-device store
//   - PostgresJournal (OpenPostgres): pgx pool, for hosted test rigs
//   - Memory (NewMemory): mutex-guarded map for demos and tests
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: A returned Save survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Each Save and UpdateState runs in one SQL transaction, which gives the
// per-transaction-id atomicity the handshake relies on.
package journal
