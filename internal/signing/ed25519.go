// Package signing implements the Ed25519 helper used for outbound signed
// interactions. Keys travel as hex strings: a private key is either a
// 32-byte seed or a 64-byte secret key (seed followed by public key), in
// which case the leading 32 bytes are the seed.
package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PrivateKeyBytes decodes a private key hex string into an Ed25519 private
// key, accepting both seed and seed-plus-public forms.
func PrivateKeyBytes(privateKeyHex string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf("invalid private key length %d, want 32 or 64 bytes", len(raw))
	}
}

// PublicKeyHex derives the lowercase-hex public key for a private key.
func PublicKeyHex(privateKeyHex string) (string, error) {
	priv, err := PrivateKeyBytes(privateKeyHex)
	if err != nil {
		return "", err
	}
	pub := priv.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), nil
}

// Sign signs timestamp concatenated with body, no separator, and returns
// the signature as lowercase hex.
func Sign(privateKeyHex, timestamp, body string) (string, error) {
	priv, err := PrivateKeyBytes(privateKeyHex)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, []byte(timestamp+body))
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex signature over message against a hex public key.
func Verify(signatureHex, message, publicKeyHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}
