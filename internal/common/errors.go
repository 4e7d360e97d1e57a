// Package common defines shared sentinel errors and small utilities used
// across the SecureVault server layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("account is deactivated")

	// Credential errors. Login collapses every failure mode to this one
	// value so callers cannot distinguish "no such user" from "wrong
	// password".
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSamePassword       = errors.New("new password must be different from current password")

	// Auth errors (invalid, expired, malformed, or wrong-type token).
	ErrInvalidToken = errors.New("invalid token")

	// Returned by the rate limiter once a window's counter is exhausted.
	ErrorTooManyRequests = errors.New("too many requests")

	// Decryption failure: tag mismatch, corrupted ciphertext, or malformed
	// input. All failure modes report this one value; callers log it as a
	// security event and return a generic error.
	ErrDecryptionFailed = errors.New("decryption failed")
)
