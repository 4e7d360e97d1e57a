// Package auth implements stateless session tokens: signed JWT pairs with a
// type claim separating short-lived access tokens from long-lived refresh
// tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/securevault/internal/common"
)

// Token type tags. A token of one type must never validate as the other.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the JWT payload: standard sub/iat/exp plus the type tag.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// TokenManager issues and verifies HS256-signed token pairs. It is immutable
// after construction and safe for concurrent use. Tokens are not persisted
// server-side; their lifecycle is fully defined by iat/exp and the
// signature.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a manager signing with the given symmetric key.
func NewTokenManager(secret []byte, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithTimeFunc returns a copy of the manager using the given clock for both
// issuing and expiry checks. Used for deterministic expiry tests.
func (tm *TokenManager) WithTimeFunc(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	return &clone
}

// IssueAccess mints a short-lived access token for the subject.
func (tm *TokenManager) IssueAccess(subject string) (string, error) {
	return tm.issue(subject, TypeAccess, tm.accessTTL)
}

// IssueRefresh mints a long-lived refresh token for the subject.
func (tm *TokenManager) IssueRefresh(subject string) (string, error) {
	return tm.issue(subject, TypeRefresh, tm.refreshTTL)
}

// IssuePair mints an access and refresh token for the subject.
func (tm *TokenManager) IssuePair(subject string) (access string, refresh string, err error) {
	if access, err = tm.IssueAccess(subject); err != nil {
		return "", "", err
	}
	if refresh, err = tm.IssueRefresh(subject); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (tm *TokenManager) issue(subject, tokenType string, ttl time.Duration) (string, error) {
	now := tm.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	})
	return token.SignedString(tm.secret)
}

// Decode verifies the signature and temporal claims. Signature mismatch,
// structural malformation, and expiry all collapse to
// common.ErrInvalidToken; the underlying library error never crosses this
// boundary.
func (tm *TokenManager) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// VerifyAccess decodes the token and additionally requires the access type.
// This is what keeps a refresh token from being replayed as an access token.
func (tm *TokenManager) VerifyAccess(tokenString string) (*Claims, error) {
	return tm.verifyType(tokenString, TypeAccess)
}

// VerifyRefresh decodes the token and additionally requires the refresh type.
func (tm *TokenManager) VerifyRefresh(tokenString string) (*Claims, error) {
	return tm.verifyType(tokenString, TypeRefresh)
}

func (tm *TokenManager) verifyType(tokenString, tokenType string) (*Claims, error) {
	claims, err := tm.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
