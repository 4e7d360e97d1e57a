package httpapi

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/logging"
	"github.com/spec-kit/securevault/internal/server/ratelimit"
	"github.com/spec-kit/securevault/internal/server/services"
)

// AuthHandler exposes registration, login, token, and password endpoints.
type AuthHandler struct {
	users        *services.UserService
	limiter      *ratelimit.Limiter
	loginLimit   int
	refreshLimit int
	logger       logging.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(users *services.UserService, limiter *ratelimit.Limiter, loginLimit, refreshLimit int, logger logging.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		limiter:      limiter,
		loginLimit:   loginLimit,
		refreshLimit: refreshLimit,
		logger:       logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "email is required")
	}
	if err := validatePassword(req.Password); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.users.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			// Same message as any other registration failure, so the
			// endpoint cannot be used to probe for existing accounts.
			return fiber.NewError(http.StatusBadRequest, "Registration failed. Please check your information.")
		}
		return err
	}

	h.logger.Info(c.UserContext(), "user registered", "user_id", user.ID)
	return c.Status(http.StatusCreated).JSON(newUserResponse(user))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if err := h.limiter.Allow(c.UserContext(), "login", c.IP(), h.loginLimit); err != nil {
		return err
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password are required")
	}

	pair, err := h.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(newTokenResponse(pair.AccessToken, pair.RefreshToken))
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	if err := h.limiter.Allow(c.UserContext(), "refresh", c.IP(), h.refreshLimit); err != nil {
		return err
	}

	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh_token is required")
	}

	pair, err := h.users.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(newTokenResponse(pair.AccessToken, pair.RefreshToken))
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}
	return c.JSON(newUserResponse(user))
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	var req passwordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	err := h.users.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusBadRequest, "Current password is incorrect")
		}
		return err
	}

	h.logger.Info(c.UserContext(), "password changed", "user_id", user.ID)
	return c.JSON(messageResponse{Message: "Password changed successfully"})
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so logout
// amounts to the client discarding them.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}
	h.logger.Info(c.UserContext(), "user logged out", "user_id", user.ID)
	return c.JSON(messageResponse{Message: "Successfully logged out"})
}
