package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/dbx"
	"github.com/spec-kit/securevault/internal/server/models"
)

// PostgresRepository implements secret storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new secret row and returns it with timestamps populated.
func (r *PostgresRepository) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	query := `
		INSERT INTO secrets (id, user_id, name, description, encrypted_content, nonce)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		secret.ID, secret.UserID, secret.Name, secret.Description,
		secret.EncryptedContent, secret.Nonce).
		Scan(&secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return secret, nil
}

// GetByID returns the secret row for the given id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	query := `
		SELECT id, user_id, name, description, encrypted_content, nonce, created_at, updated_at
		FROM secrets
		WHERE id = $1
	`
	return r.scanSecret(r.db.QueryRowContext(ctx, query, id))
}

// ListByUser returns a page of the user's secrets, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.Secret, error) {
	query := `
		SELECT id, user_id, name, description, encrypted_content, nonce, created_at, updated_at
		FROM secrets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Secret
	for rows.Next() {
		s := &models.Secret{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Description,
			&s.EncryptedContent, &s.Nonce, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// CountByUser returns the total number of secrets owned by the user.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT count(*) FROM secrets WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

// Update rewrites the metadata and ciphertext of an existing secret.
func (r *PostgresRepository) Update(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	query := `
		UPDATE secrets
		SET name = $2, description = $3, encrypted_content = $4, nonce = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		secret.ID, secret.Name, secret.Description,
		secret.EncryptedContent, secret.Nonce).
		Scan(&secret.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return secret, nil
}

// Delete removes the secret row, reporting common.ErrorNotFound when no row
// matched.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM secrets WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanSecret(row *sql.Row) (*models.Secret, error) {
	s := &models.Secret{}
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description,
		&s.EncryptedContent, &s.Nonce, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}
