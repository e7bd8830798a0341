package wallet

// Default risk limits.
const (
	DefaultMaxPerTransactionCents int64  = 10_000
	DefaultMaxPerDayPerPayerCents int64  = 50_000
	DefaultMaxClockSkewSeconds    uint64 = 300
	DefaultIntentTTLSeconds       uint64 = 30
)

// RiskPolicy bounds what a device will sign while offline.
//
// MaxPerDayPerPayerCents is carried for the settlement side and for
// future aggregation; the handshake does not enforce it.
type RiskPolicy struct {
	MaxPerTransactionCents int64  `json:"max_per_transaction_cents"`
	MaxPerDayPerPayerCents int64  `json:"max_per_day_per_payer_cents"`
	MaxClockSkewSeconds    uint64 `json:"max_clock_skew_seconds"`
	IntentTTLSeconds       uint64 `json:"intent_ttl_seconds"`
}

// DefaultRiskPolicy returns the stock limits.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		MaxPerTransactionCents: DefaultMaxPerTransactionCents,
		MaxPerDayPerPayerCents: DefaultMaxPerDayPerPayerCents,
		MaxClockSkewSeconds:    DefaultMaxClockSkewSeconds,
		IntentTTLSeconds:       DefaultIntentTTLSeconds,
	}
}

// AllowsAmount reports whether amountCents is inside (0, MaxPerTransactionCents].
func (p RiskPolicy) AllowsAmount(amountCents int64) bool {
	return amountCents > 0 && amountCents <= p.MaxPerTransactionCents
}

// DeviceIdentity is the credential set of a participating device.
// LocalCounter is copied into every message the device signs; nothing
// checks it for monotonic progress.
type DeviceIdentity struct {
	AccountID    string `json:"account_id" yaml:"account_id"`
	DeviceID     string `json:"device_id" yaml:"device_id"`
	SigningKeyID string `json:"signing_key_id" yaml:"signing_key_id"`
	LocalCounter uint32 `json:"local_counter" yaml:"local_counter"`
}

// Intent is the merchant's signed, time-bounded offer to receive a payment.
type Intent struct {
	TxID              string `json:"tx_id"`
	IntentID          string `json:"intent_id"`
	MerchantAccountID string `json:"merchant_account_id"`
	MerchantDeviceID  string `json:"merchant_device_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	MerchantNonce     string `json:"merchant_nonce"`
	MerchantCounter   uint32 `json:"merchant_counter"`
	IssuedAt          uint64 `json:"issued_at"`
	ExpiresAt         uint64 `json:"expires_at"`
	MerchantSignature string `json:"merchant_signature"`
}

// Authorization is the payer's signed acceptance of one Intent.
type Authorization struct {
	TxID            string `json:"tx_id"`
	IntentID        string `json:"intent_id"`
	AuthorizationID string `json:"authorization_id"`
	PayerAccountID  string `json:"payer_account_id"`
	PayerDeviceID   string `json:"payer_device_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	PayerNonce      string `json:"payer_nonce"`
	PayerCounter    uint32 `json:"payer_counter"`
	AuthorizedAt    uint64 `json:"authorized_at"`
	PayerSignature  string `json:"payer_signature"`
}

// Receipt is the merchant's signed confirmation that an Authorization was
// accepted and now waits for backend synchronization.
type Receipt struct {
	TxID              string           `json:"tx_id"`
	ReceiptID         string           `json:"receipt_id"`
	MerchantAccountID string           `json:"merchant_account_id"`
	PayerAccountID    string           `json:"payer_account_id"`
	AmountCents       int64            `json:"amount_cents"`
	Currency          string           `json:"currency"`
	Status            TransactionState `json:"status"`
	CreatedAt         uint64           `json:"created_at"`
	MerchantSignature string           `json:"merchant_signature"`
}

// LocalTransaction is the durable journal row for one transaction id.
// Payer-side fields are empty until the payer authorizes (payer journal)
// or the merchant accepts (merchant journal).
type LocalTransaction struct {
	TxID              string           `json:"tx_id"`
	MerchantAccountID string           `json:"merchant_account_id"`
	PayerAccountID    string           `json:"payer_account_id"`
	MerchantDeviceID  string           `json:"merchant_device_id"`
	PayerDeviceID     string           `json:"payer_device_id"`
	AmountCents       int64            `json:"amount_cents"`
	Currency          string           `json:"currency"`
	IntentID          string           `json:"intent_id"`
	AuthorizationID   string           `json:"authorization_id"`
	MerchantNonce     string           `json:"merchant_nonce"`
	PayerNonce        string           `json:"payer_nonce"`
	MerchantCounter   uint32           `json:"merchant_counter"`
	PayerCounter      uint32           `json:"payer_counter"`
	State             TransactionState `json:"state"`
	FailureReason     string           `json:"failure_reason,omitempty"`
	CreatedAt         uint64           `json:"created_at"`
	UpdatedAt         uint64           `json:"updated_at"`
	IdempotencyKey    string           `json:"idempotency_key"`
}
