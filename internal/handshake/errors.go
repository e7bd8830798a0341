package handshake

import (
	"errors"
	"fmt"
)

// Code categorizes handshake failures.
type Code string

const (
	// CodeInvalidInput: the call cannot report a result (nil orchestrator or
	// missing collaborator). No side effects were performed.
	CodeInvalidInput Code = "invalid_input"

	// CodePolicyDenied: amount outside policy bounds, or clock skew at
	// authorization time exceeds tolerance.
	CodePolicyDenied Code = "policy_denied"

	// CodeExpired: the intent's expiry passed before authorization.
	CodeExpired Code = "expired"

	// CodeUnknownTransaction: acceptance referenced a transaction id with no
	// merchant-side row.
	CodeUnknownTransaction Code = "unknown_transaction"

	// CodeMismatch: intent id, amount or currency disagree with the
	// persisted row.
	CodeMismatch Code = "mismatch"

	// CodeJournalFailure: the journal reported failure. For acceptance the
	// outcome is unknown; reload and compare before retrying.
	CodeJournalFailure Code = "journal_failure"

	// CodeCollaboratorFailure: the Signer or RandomSource returned an error
	// before anything was persisted.
	CodeCollaboratorFailure Code = "collaborator_failure"
)

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrInvalidInput        = &Error{Code: CodeInvalidInput}
	ErrPolicyDenied        = &Error{Code: CodePolicyDenied}
	ErrExpired             = &Error{Code: CodeExpired}
	ErrUnknownTransaction  = &Error{Code: CodeUnknownTransaction}
	ErrMismatch            = &Error{Code: CodeMismatch}
	ErrJournalFailure      = &Error{Code: CodeJournalFailure}
	ErrCollaboratorFailure = &Error{Code: CodeCollaboratorFailure}
)

// Error is the single error type returned by Orchestrator operations.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// TxID identifies the affected transaction when one is known.
	TxID string

	// Err is the collaborator error that caused the failure, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TxID != "" {
		msg = fmt.Sprintf("%s (tx=%s)", msg, e.TxID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying collaborator error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Code, so the package sentinels work with
// errors.Is regardless of message or tx id.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the Code of a handshake error, or "" if err is nil or not
// a handshake error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

func newError(code Code, txID, message string, cause error) *Error {
	return &Error{Code: code, Message: message, TxID: txID, Err: cause}
}
