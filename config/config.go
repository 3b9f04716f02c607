package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string
	LogLevel    string
	LogEncoding string

	GoogleBooksURL string
}

const (
	DefaultPort        = "8080"
	DefaultJWTSecret   = "your-secret-key"
	DefaultTokenTTL    = 24 * time.Hour
	DefaultCORSOrigins = "*"
	DefaultLogLevel    = "info"
	DefaultLogEncoding = "json"

	DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"
)

// Load reads the server configuration from the environment. Files in
// envFiles are loaded first; variables already set in the environment win,
// and missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	ttl := DefaultTokenTTL
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("TOKEN_TTL must be positive")
		}
		ttl = d
	}

	return &Config{
		Port:        getEnvOrDefault("PORT", DefaultPort),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getEnvOrDefault("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:    ttl,
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", DefaultCORSOrigins)),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", DefaultLogLevel),
		LogEncoding: getEnvOrDefault("LOG_ENCODING", DefaultLogEncoding),

		GoogleBooksURL: getEnvOrDefault("GOOGLE_BOOKS_URL", DefaultGoogleBooksURL),
	}, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
