// Package secrets provides a PostgreSQL-backed repository for encrypted
// secret entries.
package secrets

import (
	"context"

	"github.com/spec-kit/securevault/internal/server/models"
)

// Repository describes storage operations over encrypted secret entries.
// All content columns hold ciphertext; plaintext never reaches this layer.
type Repository interface {
	Create(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	GetByID(ctx context.Context, id string) (*models.Secret, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.Secret, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	Delete(ctx context.Context, id string) error
}
