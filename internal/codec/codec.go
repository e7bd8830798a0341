// Package codec wraps handshake messages in text envelopes so they can
// travel between devices over any channel that carries a string (QR code,
// NFC record, clipboard).
//
// An envelope is base64(JSON{type, payload, created_at}) where payload is
// base64(JSON message). The type tag is checked on decode.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// Kind tags the message inside an envelope.
type Kind string

const (
	KindIntent        Kind = "payment_intent"
	KindAuthorization Kind = "payment_authorization"
	KindReceipt       Kind = "payment_receipt"
)

var (
	// ErrInvalidEnvelope reports text that is not a well-formed envelope.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrWrongType reports an envelope holding a different message kind.
	ErrWrongType = errors.New("wrong envelope type")
)

// Envelope is the decoded outer layer.
type Envelope struct {
	Type      Kind   `json:"type"`
	Payload   string `json:"payload"`
	CreatedAt uint64 `json:"created_at"`
}

// Encode wraps v as an envelope of the given kind.
func Encode(kind Kind, v any, createdAt uint64) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("encode: unknown kind %q", kind)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	env, err := json.Marshal(Envelope{
		Type:      kind,
		Payload:   base64.StdEncoding.EncodeToString(payload),
		CreatedAt: createdAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(env), nil
}

// EncodeIntent wraps an Intent.
func EncodeIntent(intent wallet.Intent, createdAt uint64) (string, error) {
	return Encode(KindIntent, intent, createdAt)
}

// EncodeAuthorization wraps an Authorization.
func EncodeAuthorization(auth wallet.Authorization, createdAt uint64) (string, error) {
	return Encode(KindAuthorization, auth, createdAt)
}

// EncodeReceipt wraps a Receipt.
func EncodeReceipt(receipt wallet.Receipt, createdAt uint64) (string, error) {
	return Encode(KindReceipt, receipt, createdAt)
}

// Peek decodes the outer envelope without touching the payload.
// Surrounding whitespace is ignored.
func Peek(text string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	var env Envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if !env.Type.valid() {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, env.Type)
	}
	return env, nil
}

// DecodeIntent unwraps an intent envelope.
func DecodeIntent(text string) (wallet.Intent, error) {
	var intent wallet.Intent
	err := decode(text, KindIntent, &intent)
	return intent, err
}

// DecodeAuthorization unwraps an authorization envelope.
func DecodeAuthorization(text string) (wallet.Authorization, error) {
	var auth wallet.Authorization
	err := decode(text, KindAuthorization, &auth)
	return auth, err
}

// DecodeReceipt unwraps a receipt envelope.
func DecodeReceipt(text string) (wallet.Receipt, error) {
	var receipt wallet.Receipt
	err := decode(text, KindReceipt, &receipt)
	return receipt, err
}

func decode(text string, want Kind, v any) error {
	env, err := Peek(text)
	if err != nil {
		return err
	}
	if env.Type != want {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongType, env.Type, want)
	}
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, err)
	}
	if err := strictUnmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, err)
	}
	return nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (k Kind) valid() bool {
	switch k {
	case KindIntent, KindAuthorization, KindReceipt:
		return true
	}
	return false
}
