package models

import "time"

// Secret is an encrypted record row. Name and Description stay in the clear
// for listing and search; EncryptedContent and Nonce are the base64-encoded
// AES-GCM payload, only ever decrypted on behalf of the owning user.
type Secret struct {
	ID               string
	UserID           string
	Name             string
	Description      string
	EncryptedContent string
	Nonce            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
