package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/server/config"
	"github.com/spec-kit/securevault/internal/server/cryptox"
	"github.com/spec-kit/securevault/internal/server/models"
	"github.com/spec-kit/securevault/internal/server/repositories/repomanager"
)

// SecretPage is one page of a user's secret listing. Content stays encrypted
// at rest; list items carry metadata only.
type SecretPage struct {
	Items    []*models.Secret
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// SecretService provides CRUD over encrypted secrets. Plaintext exists only
// inside a single call: it is encrypted with the owner's derived key before
// touching the repository and decrypted on the way out.
type SecretService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cryptox.Cipher
}

// NewSecretService constructs a SecretService using repositories and server
// config.
func NewSecretService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SecretService {
	return &SecretService{
		db:          db,
		repomanager: m,
		cipher:      cryptox.NewCipher(cfg.EncryptionMasterKey),
	}
}

// Create encrypts the content under the owner's key and stores a new secret.
func (s *SecretService) Create(ctx context.Context, userID, name, description, content string) (*models.Secret, error) {
	ciphertext, nonce, err := s.cipher.Encrypt(content, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	secret := &models.Secret{
		ID:               uuid.NewString(),
		UserID:           userID,
		Name:             name,
		Description:      description,
		EncryptedContent: ciphertext,
		Nonce:            nonce,
	}
	repo := s.repomanager.Secrets(s.db)
	created, err := repo.Create(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("error creating secret: %v", err)
	}
	return created, nil
}

// List returns one page of the user's secrets plus pagination totals.
// Page numbering starts at 1.
func (s *SecretService) List(ctx context.Context, userID string, page, pageSize int) (*SecretPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	repo := s.repomanager.Secrets(s.db)
	total, err := repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	items, err := repo.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, common.ErrorInternal
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return &SecretPage{Items: items, Total: total, Page: page, PageSize: pageSize, Pages: pages}, nil
}

// Get returns a single secret with its content decrypted. Secrets owned by
// other users are indistinguishable from missing ones.
func (s *SecretService) Get(ctx context.Context, userID, secretID string) (*models.Secret, string, error) {
	secret, err := s.load(ctx, userID, secretID)
	if err != nil {
		return nil, "", err
	}
	content, err := s.cipher.Decrypt(secret.EncryptedContent, secret.Nonce, userID)
	if err != nil {
		return nil, "", common.ErrDecryptionFailed
	}
	return secret, content, nil
}

// Update rewrites a secret's metadata and, when content is non-nil,
// re-encrypts the new content under a fresh nonce.
func (s *SecretService) Update(ctx context.Context, userID, secretID string, name, description, content *string) (*models.Secret, error) {
	secret, err := s.load(ctx, userID, secretID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		secret.Name = *name
	}
	if description != nil {
		secret.Description = *description
	}
	if content != nil {
		ciphertext, nonce, err := s.cipher.Encrypt(*content, userID)
		if err != nil {
			return nil, common.ErrorInternal
		}
		secret.EncryptedContent = ciphertext
		secret.Nonce = nonce
	}
	repo := s.repomanager.Secrets(s.db)
	updated, err := repo.Update(ctx, secret)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return updated, nil
}

// Delete removes a secret owned by the user.
func (s *SecretService) Delete(ctx context.Context, userID, secretID string) error {
	if _, err := s.load(ctx, userID, secretID); err != nil {
		return err
	}
	if err := s.repomanager.Secrets(s.db).Delete(ctx, secretID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

// Rotate re-encrypts a secret's existing content under a fresh nonce without
// changing the plaintext.
func (s *SecretService) Rotate(ctx context.Context, userID, secretID string) (*models.Secret, error) {
	secret, err := s.load(ctx, userID, secretID)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := s.cipher.Rotate(secret.EncryptedContent, secret.Nonce, userID)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}
	secret.EncryptedContent = ciphertext
	secret.Nonce = nonce
	updated, err := s.repomanager.Secrets(s.db).Update(ctx, secret)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return updated, nil
}

// load fetches a secret and enforces ownership. A secret belonging to another
// user is reported as not found.
func (s *SecretService) load(ctx context.Context, userID, secretID string) (*models.Secret, error) {
	secret, err := s.repomanager.Secrets(s.db).GetByID(ctx, secretID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	if secret.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return secret, nil
}
