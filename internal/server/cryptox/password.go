package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	hashLength = 32

	// maxDecodedMemory caps the m= parameter accepted from stored
	// credentials, in KiB. A credential demanding more than 4 GiB is
	// treated as malformed rather than allocated.
	maxDecodedMemory = 4 * 1024 * 1024
)

// Argon2Params are the tunable cost parameters for Argon2id. Memory is in
// KiB. Operators adjust these via configuration; credentials hashed under
// older parameters are detected by NeedsRehash and upgraded after the next
// successful verification.
type Argon2Params struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
}

// Hasher produces and verifies Argon2id password credentials in the PHC
// string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<b64 salt>$<b64 hash>
//
// The encoded credential is self-describing: verification reads the embedded
// parameters, so old hashes keep verifying after a parameter upgrade.
type Hasher struct {
	params Argon2Params
}

// NewHasher constructs a Hasher with the given cost parameters. Parameter
// floors are enforced by the configuration layer at startup.
func NewHasher(params Argon2Params) *Hasher {
	return &Hasher{params: params}
}

// Hash derives an Argon2id credential from the password using a fresh random
// 16-byte salt. Two calls with the same password produce different
// credentials.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt generation: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt,
		h.params.Time, h.params.Memory, h.params.Parallelism, hashLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// Verify recomputes the hash under the credential's embedded parameters and
// compares in constant time. Malformed credentials and mismatches are
// indistinguishable: both return false, never an error.
func (h *Hasher) Verify(password, encoded string) bool {
	params, salt, hash, err := decodeCredential(encoded)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt,
		params.Time, params.Memory, params.Parallelism, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, candidate) == 1
}

// NeedsRehash reports whether the credential was produced under cost
// parameters different from the currently configured ones. Malformed
// credentials report true so the post-verification upgrade path repairs
// them. Callers must only rehash after a successful Verify.
func (h *Hasher) NeedsRehash(encoded string) bool {
	params, _, _, err := decodeCredential(encoded)
	if err != nil {
		return true
	}
	return params != h.params
}

// decodeCredential parses a PHC-formatted argon2id credential into its
// parameters, salt, and hash.
func decodeCredential(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("malformed credential")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("malformed version: %w", err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Time, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("malformed parameters: %w", err)
	}
	if params.Time == 0 || params.Parallelism == 0 {
		return params, nil, nil, fmt.Errorf("degenerate cost parameters")
	}
	if params.Memory < 8*uint32(params.Parallelism) || params.Memory > maxDecodedMemory {
		return params, nil, nil, fmt.Errorf("memory cost out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed hash: %w", err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		return params, nil, nil, fmt.Errorf("empty salt or hash")
	}

	return params, salt, hash, nil
}
