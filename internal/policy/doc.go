// Package policy loads RiskPolicy values from CUE files.
//
// A policy file declares a top-level "policy" struct:
//
//	policy: {
//		max_per_transaction_cents: 20000
//		intent_ttl_seconds:        60
//	}
//
// The struct is unified with an embedded schema (schema.cue). Missing
// fields take the stock defaults; unknown fields and out-of-range values
// are errors carrying the CUE source position.
package policy
