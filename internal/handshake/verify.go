package handshake

import "github.com/roach88/offlinewallet/internal/wallet"

// VerifyIntent checks the merchant signature on intent against keyID.
func VerifyIntent(signer Signer, intent wallet.Intent, keyID string) bool {
	return signer.Verify(intent.MerchantSignature, IntentMessage(intent), keyID)
}

// VerifyAuthorization checks the payer signature on auth against keyID.
func VerifyAuthorization(signer Signer, auth wallet.Authorization, keyID string) bool {
	return signer.Verify(auth.PayerSignature, AuthorizationMessage(auth), keyID)
}

// VerifyReceipt checks the merchant signature on receipt. The receipt does
// not carry the authorization id, so the caller supplies it.
func VerifyReceipt(signer Signer, receipt wallet.Receipt, authorizationID, keyID string) bool {
	return signer.Verify(receipt.MerchantSignature, ReceiptMessage(receipt.TxID, authorizationID), keyID)
}
