// Package cryptox implements the cryptographic core of SecureVault:
// HKDF key derivation, Argon2id password credentials, and AES-256-GCM
// encryption of secret payloads.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLength is the AES-256 key size.
	KeyLength = 32
	// NonceLength is the recommended GCM nonce size.
	NonceLength = 12
)

// masterKeyContext is the fixed derivation context used when the configured
// master secret is a passphrase rather than a raw hex key.
var masterKeyContext = []byte("master-key-derivation")

// Cipher holds the resolved master key and provides key derivation and
// authenticated encryption for per-user secret payloads. It is immutable
// after construction and safe for concurrent use.
type Cipher struct {
	masterKey []byte
}

// NewCipher resolves the configured master secret into a 32-byte master key.
// A 64-character hex value is decoded directly; any other value is run
// through HKDF with a fixed context. Secret length is validated by the
// configuration layer before this is called.
func NewCipher(masterSecret string) *Cipher {
	if len(masterSecret) == 2*KeyLength {
		if key, err := hex.DecodeString(masterSecret); err == nil {
			return &Cipher{masterKey: key}
		}
	}
	return &Cipher{masterKey: deriveKey([]byte(masterSecret), masterKeyContext)}
}

// deriveKey derives a 32-byte key from the input key material using
// HKDF-SHA256. No salt is used; the context string supplies domain
// separation. Deterministic: same inputs always yield the same key.
func deriveKey(inputKey, context []byte) []byte {
	r := hkdf.New(sha256.New, inputKey, nil, context)
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails after exhausting 255 blocks; unreachable for 32 bytes.
		panic(err)
	}
	return key
}

// DeriveKey derives a 32-byte key bound to the given context.
func (c *Cipher) DeriveKey(context []byte) []byte {
	return deriveKey(c.masterKey, context)
}

// DeriveUserKey derives the encryption key for a single user. Two distinct
// users never share a key, so compromising one derived key does not affect
// other users' data.
func (c *Cipher) DeriveUserKey(userID string) []byte {
	return c.DeriveKey([]byte("user-key:" + userID))
}
