package handshake

import (
	"context"
	"errors"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// tokenBytes is the random byte count behind every id and nonce.
const tokenBytes = 8

// Orchestrator drives the three-phase handshake. It is stateless; all
// durable state lives in the Journal.
//
// Thread-safety: safe for concurrent use when the injected collaborators
// are.
type Orchestrator struct {
	policy  wallet.RiskPolicy
	signer  Signer
	random  RandomSource
	clock   Clock
	journal Journal
}

// New creates an Orchestrator. Every collaborator is required; a nil one
// yields an InvalidInput error.
func New(policy wallet.RiskPolicy, signer Signer, random RandomSource, clock Clock, journal Journal) (*Orchestrator, error) {
	o := &Orchestrator{
		policy:  policy,
		signer:  signer,
		random:  random,
		clock:   clock,
		journal: journal,
	}
	if !o.ready() {
		return nil, newError(CodeInvalidInput, "", "signer, random source, clock and journal are required", nil)
	}
	return o, nil
}

// Policy returns the risk policy the orchestrator enforces.
func (o *Orchestrator) Policy() wallet.RiskPolicy {
	return o.policy
}

// BuildMerchantIntent creates a signed Intent and persists the merchant's
// initiated row.
//
// Either both the Intent and the persisted row exist, or neither is
// returned: a journal failure discards the Intent.
func (o *Orchestrator) BuildMerchantIntent(ctx context.Context, merchant wallet.DeviceIdentity, amountCents int64, currency string) (wallet.Intent, wallet.LocalTransaction, error) {
	if !o.ready() {
		return wallet.Intent{}, wallet.LocalTransaction{}, errNotReady()
	}
	if !o.policy.AllowsAmount(amountCents) {
		return wallet.Intent{}, wallet.LocalTransaction{}, newError(CodePolicyDenied, "", "amount violates policy", nil)
	}

	now := o.clock.NowUnixSeconds()
	txID, err := o.token(wallet.PrefixTransaction)
	if err != nil {
		return wallet.Intent{}, wallet.LocalTransaction{}, err
	}
	intentID, err := o.token(wallet.PrefixIntent)
	if err != nil {
		return wallet.Intent{}, wallet.LocalTransaction{}, err
	}
	nonce, err := o.token("")
	if err != nil {
		return wallet.Intent{}, wallet.LocalTransaction{}, err
	}

	intent := wallet.Intent{
		TxID:              txID,
		IntentID:          intentID,
		MerchantAccountID: merchant.AccountID,
		MerchantDeviceID:  merchant.DeviceID,
		AmountCents:       amountCents,
		Currency:          currency,
		MerchantNonce:     nonce,
		MerchantCounter:   merchant.LocalCounter,
		IssuedAt:          now,
		ExpiresAt:         now + o.policy.IntentTTLSeconds,
	}
	intent.MerchantSignature, err = o.sign(IntentMessage(intent), merchant.SigningKeyID, txID)
	if err != nil {
		return wallet.Intent{}, wallet.LocalTransaction{}, err
	}

	tx := wallet.LocalTransaction{
		TxID:              txID,
		MerchantAccountID: merchant.AccountID,
		MerchantDeviceID:  merchant.DeviceID,
		AmountCents:       amountCents,
		Currency:          currency,
		IntentID:          intentID,
		MerchantNonce:     nonce,
		MerchantCounter:   merchant.LocalCounter,
		State:             wallet.StateInitiated,
		CreatedAt:         now,
		UpdatedAt:         now,
		IdempotencyKey:    wallet.MerchantIdempotencyKey(txID),
	}
	if err := o.journal.Save(ctx, tx); err != nil {
		return wallet.Intent{}, wallet.LocalTransaction{}, newError(CodeJournalFailure, txID, "failed to persist local transaction", err)
	}

	return intent, tx, nil
}

// BuildPayerAuthorization signs the payer's acceptance of intent and
// persists a fresh authorized row in the payer's journal.
//
// Checks run in order: expiry, amount, clock skew. The intent's merchant
// signature is not verified here; see VerifyIntent.
func (o *Orchestrator) BuildPayerAuthorization(ctx context.Context, payer wallet.DeviceIdentity, intent wallet.Intent) (wallet.Authorization, wallet.LocalTransaction, error) {
	if !o.ready() {
		return wallet.Authorization{}, wallet.LocalTransaction{}, errNotReady()
	}

	now := o.clock.NowUnixSeconds()
	if intent.ExpiresAt < now {
		return wallet.Authorization{}, wallet.LocalTransaction{}, newError(CodeExpired, intent.TxID, "intent expired", nil)
	}
	if !o.policy.AllowsAmount(intent.AmountCents) {
		return wallet.Authorization{}, wallet.LocalTransaction{}, newError(CodePolicyDenied, intent.TxID, "amount violates policy", nil)
	}
	if absDiff(now, intent.IssuedAt) > o.policy.MaxClockSkewSeconds {
		return wallet.Authorization{}, wallet.LocalTransaction{}, newError(CodePolicyDenied, intent.TxID, "clock skew exceeded", nil)
	}

	authID, err := o.token(wallet.PrefixAuthorization)
	if err != nil {
		return wallet.Authorization{}, wallet.LocalTransaction{}, err
	}
	nonce, err := o.token("")
	if err != nil {
		return wallet.Authorization{}, wallet.LocalTransaction{}, err
	}

	auth := wallet.Authorization{
		TxID:            intent.TxID,
		IntentID:        intent.IntentID,
		AuthorizationID: authID,
		PayerAccountID:  payer.AccountID,
		PayerDeviceID:   payer.DeviceID,
		AmountCents:     intent.AmountCents,
		Currency:        intent.Currency,
		PayerNonce:      nonce,
		PayerCounter:    payer.LocalCounter,
		AuthorizedAt:    now,
	}
	auth.PayerSignature, err = o.sign(AuthorizationMessage(auth), payer.SigningKeyID, intent.TxID)
	if err != nil {
		return wallet.Authorization{}, wallet.LocalTransaction{}, err
	}

	tx := wallet.LocalTransaction{
		TxID:              intent.TxID,
		MerchantAccountID: intent.MerchantAccountID,
		PayerAccountID:    payer.AccountID,
		MerchantDeviceID:  intent.MerchantDeviceID,
		PayerDeviceID:     payer.DeviceID,
		AmountCents:       intent.AmountCents,
		Currency:          intent.Currency,
		IntentID:          intent.IntentID,
		AuthorizationID:   authID,
		MerchantNonce:     intent.MerchantNonce,
		PayerNonce:        nonce,
		MerchantCounter:   intent.MerchantCounter,
		PayerCounter:      payer.LocalCounter,
		State:             wallet.StateAuthorized,
		CreatedAt:         now,
		UpdatedAt:         now,
		IdempotencyKey:    wallet.PayerIdempotencyKey(intent.TxID, authID),
	}
	if err := o.journal.Save(ctx, tx); err != nil {
		return wallet.Authorization{}, wallet.LocalTransaction{}, newError(CodeJournalFailure, intent.TxID, "failed to persist payer transaction", err)
	}

	return auth, tx, nil
}

// AcceptAuthorization cross-checks auth against the merchant's persisted
// row, moves the row to pending_sync and returns a signed Receipt.
//
// A Mismatch leaves the row untouched. A JournalFailure means the outcome
// is unknown: the caller should Load the row again and compare before
// retrying.
func (o *Orchestrator) AcceptAuthorization(ctx context.Context, merchant wallet.DeviceIdentity, auth wallet.Authorization) (wallet.Receipt, wallet.LocalTransaction, error) {
	if !o.ready() {
		return wallet.Receipt{}, wallet.LocalTransaction{}, errNotReady()
	}

	tx, err := o.journal.Load(ctx, auth.TxID)
	if errors.Is(err, ErrNotFound) {
		return wallet.Receipt{}, wallet.LocalTransaction{}, newError(CodeUnknownTransaction, auth.TxID, "merchant transaction not found", nil)
	}
	if err != nil {
		return wallet.Receipt{}, wallet.LocalTransaction{}, newError(CodeJournalFailure, auth.TxID, "failed to load merchant transaction", err)
	}

	if tx.IntentID != auth.IntentID || tx.AmountCents != auth.AmountCents || tx.Currency != auth.Currency {
		return wallet.Receipt{}, wallet.LocalTransaction{}, newError(CodeMismatch, auth.TxID, "authorization does not match intent", nil)
	}

	now := o.clock.NowUnixSeconds()
	tx.PayerAccountID = auth.PayerAccountID
	tx.PayerDeviceID = auth.PayerDeviceID
	tx.AuthorizationID = auth.AuthorizationID
	tx.PayerNonce = auth.PayerNonce
	tx.PayerCounter = auth.PayerCounter
	tx.State = wallet.StatePendingSync
	tx.UpdatedAt = now

	if err := o.journal.Save(ctx, tx); err != nil {
		return wallet.Receipt{}, wallet.LocalTransaction{}, newError(CodeJournalFailure, auth.TxID, "failed to persist merchant acceptance", err)
	}

	receiptID, err := o.token(wallet.PrefixReceipt)
	if err != nil {
		return wallet.Receipt{}, wallet.LocalTransaction{}, err
	}
	receipt := wallet.Receipt{
		TxID:              auth.TxID,
		ReceiptID:         receiptID,
		MerchantAccountID: merchant.AccountID,
		PayerAccountID:    auth.PayerAccountID,
		AmountCents:       auth.AmountCents,
		Currency:          auth.Currency,
		Status:            wallet.StatePendingSync,
		CreatedAt:         now,
	}
	receipt.MerchantSignature, err = o.sign(ReceiptMessage(auth.TxID, auth.AuthorizationID), merchant.SigningKeyID, auth.TxID)
	if err != nil {
		return wallet.Receipt{}, wallet.LocalTransaction{}, err
	}

	return receipt, tx, nil
}

func (o *Orchestrator) ready() bool {
	return o != nil && o.signer != nil && o.random != nil && o.clock != nil && o.journal != nil
}

// token returns prefix followed by fresh random hex.
func (o *Orchestrator) token(prefix string) (string, error) {
	hex, err := o.random.NextHex(tokenBytes)
	if err != nil {
		return "", newError(CodeCollaboratorFailure, "", "random source failed", err)
	}
	return prefix + hex, nil
}

func (o *Orchestrator) sign(message, keyID, txID string) (string, error) {
	sig, err := o.signer.Sign(message, keyID)
	if err != nil {
		return "", newError(CodeCollaboratorFailure, txID, "signer failed", err)
	}
	return sig, nil
}

func errNotReady() *Error {
	return newError(CodeInvalidInput, "", "orchestrator is not initialized", nil)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
