package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first, if present; real environment
// variables win over the file.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.Version = getEnv("APP_VERSION", cfg.Version)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.EndpointAddrHTTP = getEnv("HTTP_ADDR", cfg.EndpointAddrHTTP)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.DatabaseDSN = getEnv("DATABASE_URL", cfg.DatabaseDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.JWTSecretKey = getEnv("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.EncryptionMasterKey = getEnv("ENCRYPTION_MASTER_KEY", cfg.EncryptionMasterKey)

	cfg.AccessTokenValidityDuration = time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES",
		int(cfg.AccessTokenValidityDuration.Minutes()))) * time.Minute
	cfg.RefreshTokenValidityDuration = time.Duration(getEnvAsInt("REFRESH_TOKEN_EXPIRE_DAYS",
		int(cfg.RefreshTokenValidityDuration.Hours()/24))) * 24 * time.Hour

	cfg.Argon2TimeCost = uint32(getEnvAsPositiveInt("ARGON2_TIME_COST", int(cfg.Argon2TimeCost)))
	cfg.Argon2MemoryCost = uint32(getEnvAsPositiveInt("ARGON2_MEMORY_COST", int(cfg.Argon2MemoryCost)))
	if p := getEnvAsPositiveInt("ARGON2_PARALLELISM", int(cfg.Argon2Parallelism)); p <= 255 {
		cfg.Argon2Parallelism = uint8(p)
	}

	cfg.LoginRateLimitPerMinute = getEnvAsInt("LOGIN_RATE_LIMIT_PER_MINUTE", cfg.LoginRateLimitPerMinute)
	cfg.RefreshRateLimitPerMinute = getEnvAsInt("REFRESH_RATE_LIMIT_PER_MINUTE", cfg.RefreshRateLimitPerMinute)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsPositiveInt is getEnvAsInt for values that are converted to
// unsigned cost parameters: zero and negative values keep the fallback
// instead of wrapping.
func getEnvAsPositiveInt(key string, fallback int) int {
	parsed := getEnvAsInt(key, fallback)
	if parsed <= 0 {
		return fallback
	}
	return parsed
}
