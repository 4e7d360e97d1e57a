// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. PasswordHash is an Argon2id PHC string; the
// plaintext password never reaches this layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}
