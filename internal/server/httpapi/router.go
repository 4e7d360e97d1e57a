// Package httpapi implements the REST surface of the vault: auth, secrets,
// and health endpoints served by fiber.
package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/securevault/internal/logging"
	"github.com/spec-kit/securevault/internal/server/config"
	"github.com/spec-kit/securevault/internal/server/services"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Auth    *AuthHandler
	Secrets *SecretsHandler
	Health  *HealthHandler
	Users   *services.UserService
	Logger  logging.Logger
	Config  *config.Config
}

// NewApp builds the fiber application with all middleware and routes wired.
func NewApp(rc RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      rc.Config.AppName,
		ErrorHandler: errorHandler(rc.Logger),
	})

	app.Use(recoverMiddleware(rc.Logger))
	app.Use(securityHeadersMiddleware())
	app.Use(corsMiddleware(rc.Config.AllowedOrigins))
	app.Use(requestLoggerMiddleware(rc.Logger))

	app.Get("/health", rc.Health.Live)
	app.Get("/health/ready", rc.Health.Ready)

	v1 := app.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.Post("/register", rc.Auth.Register)
	auth.Post("/login", rc.Auth.Login)
	auth.Post("/refresh", rc.Auth.Refresh)

	authed := auth.Group("", authMiddleware(rc.Users))
	authed.Get("/me", rc.Auth.Me)
	authed.Post("/change-password", rc.Auth.ChangePassword)
	authed.Post("/logout", rc.Auth.Logout)

	secrets := v1.Group("/secrets", authMiddleware(rc.Users))
	secrets.Post("/", rc.Secrets.Create)
	secrets.Get("/", rc.Secrets.List)
	secrets.Get("/:id", rc.Secrets.Get)
	secrets.Put("/:id", rc.Secrets.Update)
	secrets.Delete("/:id", rc.Secrets.Delete)

	return app
}
