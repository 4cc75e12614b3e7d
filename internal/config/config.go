// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mbd888/accessguard/internal/engine"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Ingest auth
	AuthUsername string
	AuthPassword string

	// Security
	RateLimitRPS   int
	AllowedOrigins []string

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	// Risk tuning
	NormalThreshold     float64
	SuspiciousThreshold float64
	IdentityDecay       float64
	LearningThreshold   int64
}

const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultRateLimit           = 100
	DefaultNormalThreshold     = 0.30
	DefaultSuspiciousThreshold = 0.60
	DefaultIdentityDecay       = 0.95
	DefaultLearningThreshold   = 5
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AuthUsername:        os.Getenv("AUTH_USERNAME"),
		AuthPassword:        os.Getenv("AUTH_PASSWORD"),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		NormalThreshold:     getEnvFloat("NORMAL_THRESHOLD", DefaultNormalThreshold),
		SuspiciousThreshold: getEnvFloat("SUSPICIOUS_THRESHOLD", DefaultSuspiciousThreshold),
		IdentityDecay:       getEnvFloat("IDENTITY_DECAY", DefaultIdentityDecay),
		LearningThreshold:   getEnvInt64("LEARNING_THRESHOLD", DefaultLearningThreshold),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.NormalThreshold <= 0 || c.NormalThreshold >= c.SuspiciousThreshold {
		return fmt.Errorf("NORMAL_THRESHOLD must be positive and below SUSPICIOUS_THRESHOLD")
	}
	if c.SuspiciousThreshold > 1 {
		return fmt.Errorf("SUSPICIOUS_THRESHOLD must not exceed 1.0")
	}
	if c.IdentityDecay <= 0 || c.IdentityDecay > 1 {
		return fmt.Errorf("IDENTITY_DECAY must be in (0, 1]")
	}
	if c.LearningThreshold < 1 {
		return fmt.Errorf("LEARNING_THRESHOLD must be at least 1")
	}
	if (c.AuthUsername == "") != (c.AuthPassword == "") {
		return fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD must be set together")
	}
	if c.IsProduction() && c.AuthUsername == "" {
		return fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD are required in production")
	}
	return nil
}

// EngineParams maps the tunable subset onto the engine's parameter block,
// starting from production defaults.
func (c *Config) EngineParams() engine.Params {
	p := engine.DefaultParams()
	p.NormalThreshold = c.NormalThreshold
	p.SuspiciousThreshold = c.SuspiciousThreshold
	p.IdentityDecay = c.IdentityDecay
	p.LearningThreshold = c.LearningThreshold
	return p
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
