package httpapi

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/logging"
	"github.com/spec-kit/securevault/internal/server/models"
	"github.com/spec-kit/securevault/internal/server/services"
)

const currentUserKey = "current_user"

// errorHandler maps sentinel errors to HTTP statuses. Anything unrecognized
// becomes a generic 500 so internals never leak to clients.
func errorHandler(logger logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"detail": fiberErr.Message})
		}

		status := http.StatusInternalServerError
		detail := "Internal server error"

		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			status, detail = http.StatusUnauthorized, "Invalid email or password"
		case errors.Is(err, common.ErrInvalidToken):
			status, detail = http.StatusUnauthorized, "Invalid or expired refresh token"
		case errors.Is(err, common.ErrorUnauthorized):
			status, detail = http.StatusUnauthorized, "Not authenticated"
		case errors.Is(err, common.ErrorForbidden):
			status, detail = http.StatusForbidden, "Account is deactivated"
		case errors.Is(err, common.ErrorNotFound):
			status, detail = http.StatusNotFound, "Not found"
		case errors.Is(err, common.ErrSamePassword):
			status, detail = http.StatusBadRequest, "New password must be different from current password"
		case errors.Is(err, common.ErrorTooManyRequests):
			status, detail = http.StatusTooManyRequests, "Too many requests, please try again later"
		case errors.Is(err, common.ErrDecryptionFailed):
			logger.Error(c.UserContext(), "decryption failure", "path", c.Path())
			detail = "Failed to decrypt secret"
		default:
			logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
		}

		return c.Status(status).JSON(fiber.Map{"detail": detail})
	}
}

// recoverMiddleware converts panics into 500 responses.
func recoverMiddleware(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.UserContext(), "panic recovered", "panic", r, "stack", string(debug.Stack()))
				err = common.ErrorInternal
			}
		}()
		return c.Next()
	}
}

// securityHeadersMiddleware sets browser hardening headers on every response.
func securityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}

// corsMiddleware allows cross-origin requests from the configured origins.
func corsMiddleware(allowedOrigins []string) fiber.Handler {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(http.StatusNoContent)
		}
		return c.Next()
	}
}

// requestLoggerMiddleware tags each request with a short random id and logs
// one line per request.
func requestLoggerMiddleware(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID, _ := common.MakeRandHexString(8)
		c.Set("X-Request-ID", reqID)
		err := c.Next()
		logger.Info(c.UserContext(), "request", "request_id", reqID,
			"method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode())
		return err
	}
}

// authMiddleware validates the bearer access token, loads the account, and
// rejects deactivated users. The loaded user is stored in request locals.
func authMiddleware(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return common.ErrorUnauthorized
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return common.ErrorUnauthorized
		}
		claims, err := users.Tokens().VerifyAccess(parts[1])
		if err != nil {
			return common.ErrorUnauthorized
		}
		user, err := users.GetByID(c.UserContext(), claims.Subject)
		if err != nil {
			return common.ErrorUnauthorized
		}
		if !user.IsActive {
			return common.ErrorForbidden
		}
		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// currentUser retrieves the authenticated user placed by authMiddleware.
func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(currentUserKey).(*models.User)
	return user, ok
}
