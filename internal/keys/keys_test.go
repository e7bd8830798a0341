package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyring(t *testing.T, seed string) *Keyring {
	t.Helper()
	k, err := NewKeyring([]byte(seed))
	require.NoError(t, err)
	return k
}

func TestKeyring_SignVerify(t *testing.T) {
	k := newTestKeyring(t, DemoSeed)
	msg := "tx-1|mi-1|560|CNY|n1|7|1700000030"

	sig, err := k.Sign(msg, "merchant-key")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, ed25519.SignatureSize)

	assert.True(t, k.Verify(sig, msg, "merchant-key"))
	assert.False(t, k.Verify(sig, msg+"x", "merchant-key"), "tampered message")
	assert.False(t, k.Verify(sig, msg, "payer-key"), "wrong key id")
	assert.False(t, k.Verify("not base64!", msg, "merchant-key"))
	assert.False(t, k.Verify(base64.StdEncoding.EncodeToString([]byte("short")), msg, "merchant-key"))
}

func TestKeyring_Deterministic(t *testing.T) {
	a := newTestKeyring(t, DemoSeed)
	b := newTestKeyring(t, DemoSeed)

	sigA, err := a.Sign("hello", "k1")
	require.NoError(t, err)
	sigB, err := b.Sign("hello", "k1")
	require.NoError(t, err)
	assert.Equal(t, sigA, sigB, "ed25519 signatures are deterministic")
	assert.True(t, b.Verify(sigA, "hello", "k1"), "devices sharing a seed verify each other")

	pubA, err := a.PublicKey("k1")
	require.NoError(t, err)
	pubB, err := b.PublicKey("k1")
	require.NoError(t, err)
	assert.Equal(t, pubA, pubB)
}

func TestKeyring_DistinctKeys(t *testing.T) {
	k := newTestKeyring(t, DemoSeed)
	other := newTestKeyring(t, "another-master-seed")

	p1, err := k.PublicKey("k1")
	require.NoError(t, err)
	p2, err := k.PublicKey("k2")
	require.NoError(t, err)
	p3, err := other.PublicKey("k1")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "key ids derive different keys")
	assert.NotEqual(t, p1, p3, "seeds derive different keys")
}

func TestKeyring_Errors(t *testing.T) {
	_, err := NewKeyring([]byte("short"))
	assert.ErrorIs(t, err, ErrShortSeed)

	k := newTestKeyring(t, DemoSeed)
	_, err = k.Sign("msg", "")
	assert.ErrorIs(t, err, ErrEmptyKeyID)
	assert.False(t, k.Verify("", "msg", ""))
}

func TestKeyring_ConcurrentUse(t *testing.T) {
	k := newTestKeyring(t, DemoSeed)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := k.Sign("msg", "shared")
			assert.NoError(t, err)
			assert.True(t, k.Verify(sig, "msg", "shared"))
		}()
	}
	wg.Wait()
}
