package wallet

// Id prefixes prepended to random hex tokens.
const (
	PrefixTransaction   = "tx-"
	PrefixIntent        = "mi-"
	PrefixAuthorization = "pa-"
	PrefixReceipt       = "r-"
)

// MerchantIdempotencyKey derives the merchant-side key for a transaction.
func MerchantIdempotencyKey(txID string) string {
	return "merchant:" + txID
}

// PayerIdempotencyKey derives the payer-side key for one authorization.
func PayerIdempotencyKey(txID, authorizationID string) string {
	return "payer:" + txID + ":" + authorizationID
}
