package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) (string, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(priv.Seed()), hex.EncodeToString(pub)
}

func TestPrivateKeyBytes_SeedForm(t *testing.T) {
	seedHex, pubHex := generateKeyPair(t)

	priv, err := PrivateKeyBytes(seedHex)
	require.NoError(t, err)
	assert.Equal(t, pubHex, hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
}

func TestPrivateKeyBytes_SecretKeyForm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	// 64-byte form: seed followed by public key
	decoded, err := PrivateKeyBytes(hex.EncodeToString(priv))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(pub), hex.EncodeToString(decoded.Public().(ed25519.PublicKey)))
}

func TestPrivateKeyBytes_Invalid(t *testing.T) {
	_, err := PrivateKeyBytes("not-hex")
	assert.Error(t, err)

	_, err = PrivateKeyBytes("abcd")
	assert.Error(t, err)
}

func TestPublicKeyHex(t *testing.T) {
	seedHex, pubHex := generateKeyPair(t)

	derived, err := PublicKeyHex(seedHex)
	require.NoError(t, err)
	assert.Equal(t, pubHex, derived)
}

func TestSignAndVerify(t *testing.T) {
	seedHex, pubHex := generateKeyPair(t)

	sig, err := Sign(seedHex, "1724500000", `{"type":1}`)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.Len(t, sig, ed25519.SignatureSize*2)

	assert.True(t, Verify(sig, "1724500000"+`{"type":1}`, pubHex))
	assert.False(t, Verify(sig, "1724500001"+`{"type":1}`, pubHex))
	assert.False(t, Verify(sig, "1724500000"+`{"type":2}`, pubHex))
}

func TestVerify_MalformedInputs(t *testing.T) {
	_, pubHex := generateKeyPair(t)
	assert.False(t, Verify("zz", "msg", pubHex))
	assert.False(t, Verify(strings.Repeat("ab", 64), "msg", "zz"))
	assert.False(t, Verify("abcd", "msg", pubHex))
}
