// Package keys implements handshake.Signer with Ed25519 keys derived from
// a master seed.
//
// Every key id maps to one key pair: the private seed is
// HKDF-SHA256(master, salt="offlinewallet/keys/v1", info=keyID). Two
// devices configured with the same master seed can therefore verify each
// other's signatures without exchanging public keys, which is what the
// demo and scenario runner rely on.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/roach88/offlinewallet/internal/handshake"
)

// DemoSeed is the master seed used when none is configured.
const DemoSeed = "offlinewallet-demo-seed"

const hkdfSalt = "offlinewallet/keys/v1"

// MinSeedLength is the shortest accepted master seed, in bytes.
const MinSeedLength = 16

var (
	// ErrEmptyKeyID is returned when signing with an empty key id.
	ErrEmptyKeyID = errors.New("key id must not be empty")

	// ErrShortSeed is returned by NewKeyring for seeds under MinSeedLength.
	ErrShortSeed = errors.New("master seed too short")
)

// Keyring derives and caches Ed25519 key pairs by key id.
//
// Thread-safety: Keyring is safe for concurrent use.
type Keyring struct {
	master []byte

	mu   sync.Mutex
	keys map[string]ed25519.PrivateKey
}

var _ handshake.Signer = (*Keyring)(nil)

// NewKeyring creates a keyring over master.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) < MinSeedLength {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrShortSeed, len(master), MinSeedLength)
	}
	m := make([]byte, len(master))
	copy(m, master)
	return &Keyring{master: m, keys: make(map[string]ed25519.PrivateKey)}, nil
}

// Sign returns the base64 Ed25519 signature of message under keyID.
func (k *Keyring) Sign(message, keyID string) (string, error) {
	priv, err := k.privateKey(keyID)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, []byte(message))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature is a valid signature of message under
// keyID. Malformed signatures verify false.
func (k *Keyring) Verify(signature, message, keyID string) bool {
	pub, err := k.PublicKey(keyID)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}

// PublicKey returns the public half of keyID's key pair.
func (k *Keyring) PublicKey(keyID string) (ed25519.PublicKey, error) {
	priv, err := k.privateKey(keyID)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

func (k *Keyring) privateKey(keyID string) (ed25519.PrivateKey, error) {
	if keyID == "" {
		return nil, ErrEmptyKeyID
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if priv, ok := k.keys[keyID]; ok {
		return priv, nil
	}

	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, k.master, []byte(hkdfSalt), []byte(keyID))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("derive key %s: %w", keyID, err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	k.keys[keyID] = priv
	return priv, nil
}
