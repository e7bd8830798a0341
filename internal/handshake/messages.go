package handshake

import (
	"strconv"
	"strings"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// receiptStatusLiteral is the status token signed into every receipt.
const receiptStatusLiteral = "pending_sync"

// IntentMessage builds the canonical string the merchant signs:
//
//	tx_id|intent_id|amount|currency|merchant_nonce|merchant_counter|expires_at
//
// Pipes inside fields are not escaped. Numbers are base-10 without
// padding, so identical field values always give identical bytes.
func IntentMessage(intent wallet.Intent) string {
	return joinFields(
		intent.TxID,
		intent.IntentID,
		strconv.FormatInt(intent.AmountCents, 10),
		intent.Currency,
		intent.MerchantNonce,
		strconv.FormatUint(uint64(intent.MerchantCounter), 10),
		strconv.FormatUint(intent.ExpiresAt, 10),
	)
}

// AuthorizationMessage builds the canonical string the payer signs:
//
//	tx_id|intent_id|amount|currency|payer_nonce|payer_counter|authorized_at
func AuthorizationMessage(auth wallet.Authorization) string {
	return joinFields(
		auth.TxID,
		auth.IntentID,
		strconv.FormatInt(auth.AmountCents, 10),
		auth.Currency,
		auth.PayerNonce,
		strconv.FormatUint(uint64(auth.PayerCounter), 10),
		strconv.FormatUint(auth.AuthorizedAt, 10),
	)
}

// ReceiptMessage builds the canonical string the merchant signs on
// acceptance:
//
//	tx_id|authorization_id|pending_sync
func ReceiptMessage(txID, authorizationID string) string {
	return joinFields(txID, authorizationID, receiptStatusLiteral)
}

func joinFields(fields ...string) string {
	return strings.Join(fields, "|")
}
