// Package config loads runtime configuration from the environment
// (with an optional .env file), the teacher's convention: flat struct,
// string/int getters with fallbacks.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration values.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Backing store
	RedisURL string

	// Body limits
	MaxBodyBytes int64

	// Write buffer — see writebuffer.Buffer's HighWaterMark.
	WriteBufferHighWaterMark int

	// Bucket lifecycle — the exists-cache capacity (spec §4.4: >= 1000).
	BucketCacheCapacity int

	// Auth — validated-credential TTL (spec §6 ambient auth supplement).
	AuthCacheTTL time.Duration

	// Visitor cookie lifetime (spec §6, ~100 years).
	VisitorCookieTTL time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("HIITRACK_GRACEFUL_TIMEOUT_SEC", 15)
	authTTLSec := getEnvInt("HIITRACK_AUTH_CACHE_TTL_SEC", 300)
	cookieYears := getEnvInt("HIITRACK_VISITOR_COOKIE_YEARS", 100)

	return &Config{
		Addr:                     getEnv("HIITRACK_ADDR", ":8080"),
		Env:                      getEnv("ENV", "development"),
		GracefulTimeout:          time.Duration(gracefulSec) * time.Second,
		RedisURL:                 getEnv("REDIS_URL", "redis://redis:6379"),
		MaxBodyBytes:             int64(getEnvInt("HIITRACK_MAX_BODY_BYTES", 1*1024*1024)),
		WriteBufferHighWaterMark: getEnvInt("HIITRACK_WRITE_BUFFER_HIGH_WATER_MARK", 1000),
		BucketCacheCapacity:      getEnvInt("HIITRACK_BUCKET_CACHE_CAPACITY", 1000),
		AuthCacheTTL:             time.Duration(authTTLSec) * time.Second,
		VisitorCookieTTL:         time.Duration(cookieYears) * 365 * 24 * time.Hour,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
