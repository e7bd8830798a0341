// Package harness runs offline payment handshakes described in YAML.
//
// A scenario puts a merchant device and a payer device side by side, each
// with its own in-memory SQLite journal, and drives them through a list
// of steps. Every step states the outcome it must produce, so failure
// paths (expiry, mismatches, tampered messages, sync transitions) are
// checked as precisely as the happy path.
//
// # Scenario Format
//
//	name: happy_path
//	description: "Intent, authorization and acceptance succeed"
//	policy:
//	  intent_ttl_seconds: 60
//	merchant:
//	  account_id: merchant-001
//	  device_id: m-dev-1
//	  signing_key_id: merchant-key
//	  local_counter: 7
//	payer:
//	  account_id: payer-001
//	  device_id: p-dev-1
//	  signing_key_id: payer-key
//	  local_counter: 3
//	steps:
//	  - intent: { amount_cents: 560, currency: CNY }
//	  - advance_clock: 5
//	  - authorize: { verify: true }
//	  - accept: {}
//	  - tamper: { target: authorization, field: amount_cents, value: "1" }
//	    expect: ok
//	  - mark: { side: merchant, state: synced }
//	assertions:
//	  - type: state
//	    side: merchant
//	    state: synced
//
// The expect field of a step is "ok" (the default), a handshake error
// code such as "expired" or "mismatch", or one of "invalid_signature",
// "invalid_transition" and "not_found".
//
// # Assertion Types
//
//   - state: a side's row for the current transaction is in the given state
//   - absent: a side has no row for the current transaction
//   - history_count: a side's journal history has exactly count events
//   - signed: the canonical messages signed during the run, in order
//
// # Deterministic Testing
//
// The harness uses:
//   - one testutil.ManualClock shared by both devices
//   - testutil.SequenceRandom with prefix "m" (merchant) and "p" (payer)
//   - testutil.StubSigner, whose signatures are "key|message"
//
// This ensures identical traces across runs for golden file comparison.
package harness
