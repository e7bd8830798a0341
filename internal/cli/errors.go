package cli

import (
	"errors"

	"github.com/roach88/offlinewallet/internal/handshake"
)

// Error codes for CLI failures that are not handshake refusals.
// Handshake refusals are reported under their handshake code
// ("policy_denied", "expired", ...).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfig        = "E002" // Invalid configuration or key seed
	ErrCodeInput         = "E003" // Input could not be read
	ErrCodeEnvelope      = "E004" // Input is not an envelope of the expected type
	ErrCodeNotFound      = "E005" // Transaction not found in the journal
	ErrCodeAmount        = "E006" // Amount not representable in the currency
	ErrCodeCurrency      = "E007" // Not an ISO 4217 currency code
	ErrCodeSignature     = "E008" // Signature verification failed
	ErrCodeJournal       = "E009" // Journal could not be opened or used
	ErrCodePolicy        = "E010" // Policy file invalid
	ErrCodeScenario      = "E011" // Scenario file invalid or not runnable
	ErrCodeTransition    = "E012" // State change not allowed
	ErrCodeScenarioFails = "E013" // Scenario ran and failed
)

// failHandshake reports an orchestrator error under its handshake code.
//
// Refusals (policy, expiry, unknown transaction, mismatch) exit with
// ExitFailure. Journal, collaborator and setup failures exit with
// ExitCommandError: the request itself may have been fine.
func failHandshake(f *OutputFormatter, err error) error {
	var he *handshake.Error
	if !errors.As(err, &he) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	details := map[string]string{}
	if he.TxID != "" {
		details["tx_id"] = he.TxID
	}
	if he.Err != nil {
		details["cause"] = he.Err.Error()
	}

	exit := ExitFailure
	switch he.Code {
	case handshake.CodeJournalFailure, handshake.CodeCollaboratorFailure, handshake.CodeInvalidInput:
		exit = ExitCommandError
	}

	if len(details) == 0 {
		return f.Fail(exit, string(he.Code), he.Message, nil)
	}
	return f.Fail(exit, string(he.Code), he.Message, details)
}
