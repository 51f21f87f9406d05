package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort    string
	DatabasePath  string
	LogLevel      string
	JWTSecret     string
	TokenDuration time.Duration
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
}

// Load reads configuration from the environment (and a .env file when
// present) with sensible defaults. JWT_SECRET has no default and must be
// set in production; callers decide how strict to be.
func Load() *Config {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DB_PATH", "cerdhe.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenDuration: 30 * 24 * time.Hour,
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
