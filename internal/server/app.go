// Package server initializes and runs the vault server: it wires the
// database, migrations, Redis, services, and the HTTP API, and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/securevault/internal/logging"
	"github.com/spec-kit/securevault/internal/server/config"
	"github.com/spec-kit/securevault/internal/server/httpapi"
	"github.com/spec-kit/securevault/internal/server/ratelimit"
	"github.com/spec-kit/securevault/internal/server/repositories/repomanager"
	"github.com/spec-kit/securevault/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// redisPinger adapts the go-redis client to the health handler's probe.
type redisPinger struct {
	c *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.c.Ping(ctx).Err()
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	http   *fiber.App
}

// NewApp wires all server dependencies. The returned App owns the database
// and Redis connections and closes them on shutdown.
func NewApp(cfg *config.Config) (*App, error) {
	zl, err := logging.NewProduction(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	logger := zl.With("app", cfg.AppName, "version", cfg.Version)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn(context.Background(), "unable to reach redis, rate limiting degraded", "error", err)
	}

	userService := services.NewUserService(db, rm, cfg)
	secretService := services.NewSecretService(db, rm, cfg)
	limiter := ratelimit.NewLimiter(redisClient)

	httpApp := httpapi.NewApp(httpapi.RouteConfig{
		Auth: httpapi.NewAuthHandler(userService, limiter,
			cfg.LoginRateLimitPerMinute, cfg.RefreshRateLimitPerMinute, logger),
		Secrets: httpapi.NewSecretsHandler(secretService, logger),
		Health:  httpapi.NewHealthHandler(cfg.Version, cfg.Environment, db, redisPinger{redisClient}),
		Users:   userService,
		Logger:  logger,
		Config:  cfg,
	})

	return &App{config: cfg, logger: logger, db: db, redis: redisClient, http: httpApp}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.initSignalHandler(cancel)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddrHTTP)
		errCh <- app.http.Listen(app.config.EndpointAddrHTTP)
	}()

	select {
	case err := <-errCh:
		app.close()
		return err
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.http.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Error(context.Background(), "http shutdown error", "error", err)
	}
	app.close()
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) close() {
	if err := app.redis.Close(); err != nil {
		app.logger.Error(context.Background(), "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
