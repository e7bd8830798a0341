// Package handshake implements the offline payment handshake orchestrator.
//
// Two devices that cannot reach the ledger exchange three signed artifacts:
//
//  1. Merchant: BuildMerchantIntent → Intent (plus an initiated journal row)
//  2. Payer: BuildPayerAuthorization(Intent) → Authorization (plus an
//     authorized row in the payer's journal)
//  3. Merchant: AcceptAuthorization(Authorization) → Receipt (the merchant
//     row moves to pending_sync)
//
// How the artifacts travel between devices is up to the integrator; see
// package codec for the text envelope used by the CLI.
//
// The Orchestrator holds no mutable state. Signing, randomness, time and
// persistence are injected collaborators (Signer, RandomSource, Clock,
// Journal). Every check for a call runs before that call's first
// side effect, and failures are returned as *Error values carrying a Code;
// nothing is logged or retried here. Callers own retry policy.
//
// Concurrency: calls may run concurrently to the extent the Journal
// provides per-transaction-id atomicity. The orchestrator takes no locks
// and imposes no ordering between unrelated transaction ids.
package handshake
