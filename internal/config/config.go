// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FailMode selects what happens when a fraud check cannot complete in time.
type FailMode string

const (
	// FailClosed rejects the purchase when the check times out. This is the
	// default: fraud validation gates money-bearing side effects.
	FailClosed FailMode = "closed"
	// FailOpen accepts the purchase when the check times out.
	FailOpen FailMode = "open"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Fraud engine
	MinPurchaseAmount  float64       // purchases below this trigger the low-amount signal
	RejectThreshold    int           // scores at or above this are rejected
	IPAllTimeLimit     int           // all-time purchases per origin IP before flagging
	IPDailyLimit       int           // 24h purchases per origin IP before flagging
	IdentityTimeout    time.Duration // bound on identity-provider lookups
	FraudFailMode      FailMode      // behavior when the whole check times out
	ValidationTimeout  time.Duration // overall budget for one validation call
	RewardPercent      float64       // referrer reward as a fraction of purchase amount

	// Identity provider
	IdentityProviderURL string // base URL; empty means the in-process stub

	// Payments
	StripeAPIKey string // optional; enables payment verification when set

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing

	// Security
	AdminSecret  string // Admin API secret
	RateLimitRPM int
}

// Defaults for the fraud engine. These mirror the weights table: no single
// sub-threshold signal can reject on its own.
const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultMinPurchase       = 50.00
	DefaultRejectThreshold   = 70
	DefaultIPAllTimeLimit    = 5
	DefaultIPDailyLimit      = 10
	DefaultIdentityTimeout   = 2 * time.Second
	DefaultValidationTimeout = 5 * time.Second
	DefaultRewardPercent     = 0.10
	DefaultRateLimit         = 120
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MinPurchaseAmount:   getEnvFloat("FRAUD_MIN_PURCHASE", DefaultMinPurchase),
		RejectThreshold:     int(getEnvInt64("FRAUD_REJECT_THRESHOLD", DefaultRejectThreshold)),
		IPAllTimeLimit:      int(getEnvInt64("FRAUD_IP_ALLTIME_LIMIT", DefaultIPAllTimeLimit)),
		IPDailyLimit:        int(getEnvInt64("FRAUD_IP_DAILY_LIMIT", DefaultIPDailyLimit)),
		IdentityTimeout:     getEnvDuration("IDENTITY_TIMEOUT", DefaultIdentityTimeout),
		FraudFailMode:       FailMode(getEnv("FRAUD_FAIL_MODE", string(FailClosed))),
		ValidationTimeout:   getEnvDuration("FRAUD_VALIDATION_TIMEOUT", DefaultValidationTimeout),
		RewardPercent:       getEnvFloat("REWARD_PERCENT", DefaultRewardPercent),
		IdentityProviderURL: os.Getenv("IDENTITY_PROVIDER_URL"),
		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MinPurchaseAmount <= 0 {
		return fmt.Errorf("FRAUD_MIN_PURCHASE must be positive, got %v", c.MinPurchaseAmount)
	}
	if c.RejectThreshold <= 0 {
		return fmt.Errorf("FRAUD_REJECT_THRESHOLD must be positive, got %d", c.RejectThreshold)
	}
	if c.FraudFailMode != FailClosed && c.FraudFailMode != FailOpen {
		return fmt.Errorf("FRAUD_FAIL_MODE must be %q or %q, got %q", FailClosed, FailOpen, c.FraudFailMode)
	}
	if c.RewardPercent <= 0 || c.RewardPercent >= 1 {
		return fmt.Errorf("REWARD_PERCENT must be in (0, 1), got %v", c.RewardPercent)
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
