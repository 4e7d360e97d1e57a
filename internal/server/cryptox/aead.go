package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"

	"github.com/spec-kit/securevault/internal/common"
)

// Encrypt encrypts plaintext with AES-256-GCM under the user's derived key.
// A fresh random 12-byte nonce is generated for every call; the 16-byte GCM
// tag is appended to the ciphertext. Both outputs are base64-encoded for
// storage in text columns.
//
// Nonce uniqueness per key is the critical invariant. Nonces are drawn
// independently from a 96-bit space rather than tracked per key.
func (c *Cipher) Encrypt(plaintext, userID string) (ciphertextB64, nonceB64 string, err error) {
	key := c.DeriveUserKey(userID)
	defer common.WipeByteArray(key)

	nonce := common.GenerateRandByteArray(NonceLength)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		nil
}

// Decrypt verifies the authentication tag and decrypts in one step using the
// user's derived key. Every failure mode (malformed base64, wrong nonce
// size, tag mismatch, wrong key) collapses to common.ErrDecryptionFailed so
// the caller learns nothing about why decryption failed.
func (c *Cipher) Decrypt(ciphertextB64, nonceB64, userID string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	if len(nonce) != NonceLength {
		return "", common.ErrDecryptionFailed
	}

	key := c.DeriveUserKey(userID)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// Rotate decrypts a stored payload and re-encrypts it with a fresh nonce.
// The plaintext is unchanged; only the (ciphertext, nonce) pair is replaced.
// Not atomic from the caller's perspective: until the new pair is persisted,
// the old one remains valid and recoverable.
func (c *Cipher) Rotate(ciphertextB64, nonceB64, userID string) (newCiphertextB64, newNonceB64 string, err error) {
	plaintext, err := c.Decrypt(ciphertextB64, nonceB64, userID)
	if err != nil {
		return "", "", err
	}
	return c.Encrypt(plaintext, userID)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
