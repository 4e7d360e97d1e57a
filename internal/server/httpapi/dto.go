package httpapi

import (
	"fmt"
	"time"

	"github.com/spec-kit/securevault/internal/server/models"
)

// Request body bounds, matching what clients are told in the API docs.
const (
	minPasswordLength    = 12
	maxPasswordLength    = 128
	maxNameLength        = 255
	maxDescriptionLength = 500
	maxContentLength     = 10000
	maxPageSize          = 100
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

type secretCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type secretUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
}

type secretResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type secretWithContentResponse struct {
	secretResponse
	Content string `json:"content"`
}

type secretListResponse struct {
	Items    []secretResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Pages    int              `json:"pages"`
}

func newTokenResponse(access, refresh string) tokenResponse {
	return tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func newSecretResponse(s *models.Secret) secretResponse {
	return secretResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return fmt.Errorf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength)
	}
	return nil
}

func validateSecretName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("name must be between 1 and %d characters", maxNameLength)
	}
	return nil
}

func validateSecretContent(content string) error {
	if content == "" || len(content) > maxContentLength {
		return fmt.Errorf("content must be between 1 and %d characters", maxContentLength)
	}
	return nil
}
