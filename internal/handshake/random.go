package handshake

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CryptoRandom draws tokens from the operating system CSPRNG.
//
// Thread-safety: CryptoRandom is stateless and safe for concurrent use.
type CryptoRandom struct{}

// NextHex returns byteCount random bytes, hex encoded.
func (CryptoRandom) NextHex(byteCount int) (string, error) {
	if byteCount <= 0 {
		return "", fmt.Errorf("byte count must be positive, got %d", byteCount)
	}
	buf := make([]byte, byteCount)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
