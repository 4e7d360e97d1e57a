// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, password changes, and
// issuing/refreshing JWT pairs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/dbx"
	"github.com/spec-kit/securevault/internal/server/auth"
	"github.com/spec-kit/securevault/internal/server/config"
	"github.com/spec-kit/securevault/internal/server/cryptox"
	"github.com/spec-kit/securevault/internal/server/models"
	"github.com/spec-kit/securevault/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// Both are signed JWTs; neither is stored server-side.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides account and authentication operations:
// - Register: create users with an Argon2id credential
// - Login: verify credentials and mint a token pair
// - Refresh: mint a new pair from a valid refresh token
// - ChangePassword: rotate the stored credential
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenManager
	hasher      *cryptox.Hasher
	now         func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens: auth.NewTokenManager([]byte(cfg.JWTSecretKey),
			cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration),
		hasher: cryptox.NewHasher(cryptox.Argon2Params{
			Time:        cfg.Argon2TimeCost,
			Memory:      cfg.Argon2MemoryCost,
			Parallelism: cfg.Argon2Parallelism,
		}),
		now: time.Now,
	}
}

// Tokens exposes the token manager for transport-layer verification.
func (s *UserService) Tokens() *auth.TokenManager {
	return s.tokens
}

// Register creates a new active, unverified user. A duplicate email yields
// common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, common.ErrorInternal
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		IsActive:     true,
	}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies the email/password pair and, on success, returns a new
// TokenPair. Unknown emails, wrong passwords, and deactivated accounts all
// collapse to ErrInvalidCredentials so callers cannot probe for accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, common.ErrInvalidCredentials
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Users(tx)
		if s.hasher.NeedsRehash(user.PasswordHash) {
			upgraded, err := s.hasher.Hash(password)
			if err != nil {
				return err
			}
			if err := repoTx.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
				return err
			}
		}
		return repoTx.UpdateLastLogin(ctx, user.ID, s.now().UTC())
	}); err != nil {
		return nil, common.ErrorInternal
	}

	return s.issuePair(user.ID)
}

// Refresh validates a refresh token and mints a fresh TokenPair for the
// subject. A missing or deactivated account is reported as ErrInvalidToken,
// same as a bad token, so callers cannot probe account state through the
// refresh endpoint.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrInvalidToken
	}
	return s.issuePair(user.ID)
}

// ChangePassword verifies the current password and replaces the stored
// credential with a fresh hash of the new one. Reusing the current password
// yields ErrSamePassword. Outstanding tokens remain valid until they expire.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}
	if newPassword == currentPassword {
		return common.ErrSamePassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// GetByID returns the user row for the given id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *UserService) issuePair(userID string) (*TokenPair, error) {
	access, refresh, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
