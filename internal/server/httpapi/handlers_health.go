package httpapi

import (
	"context"
	"database/sql"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports connectivity to an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	version     string
	environment string
	db          *sql.DB
	redis       Pinger
}

// NewHealthHandler constructs the handler. redis may be nil when no cache is
// configured.
func NewHealthHandler(version, environment string, db *sql.DB, redis Pinger) *HealthHandler {
	return &HealthHandler{version: version, environment: environment, db: db, redis: redis}
}

// Live handles GET /health.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"version":     h.version,
		"environment": h.environment,
	})
}

// Ready handles GET /health/ready, probing the database and Redis.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	status := "healthy"

	dbStatus := "healthy"
	if err := h.db.PingContext(c.UserContext()); err != nil {
		dbStatus = "unhealthy"
		status = "degraded"
	}

	redisStatus := "healthy"
	if h.redis != nil {
		if err := h.redis.Ping(c.UserContext()); err != nil {
			redisStatus = "unhealthy"
			status = "degraded"
		}
	}

	return c.JSON(fiber.Map{
		"status":      status,
		"version":     h.version,
		"environment": h.environment,
		"database":    dbStatus,
		"redis":       redisStatus,
	})
}
