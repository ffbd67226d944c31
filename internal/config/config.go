// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must cover a full humanize workflow.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"150s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rewriting provider
	ProviderBaseURL      string        `env:"PROVIDER_BASE_URL" envDefault:"https://humanize.undetectable.ai"`
	ProviderAPIKey       string        `env:"PROVIDER_API_KEY,required"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	ProviderRateLimitRPS float64       `env:"PROVIDER_RATE_LIMIT_RPS" envDefault:"5"`

	// Polling
	PollAttempts int           `env:"POLL_ATTEMPTS" envDefault:"6"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`

	// Humanize workflow
	MinTextLength          int           `env:"MIN_TEXT_LENGTH" envDefault:"50"`
	HumanizeSingleFlight   bool          `env:"HUMANIZE_SINGLE_FLIGHT" envDefault:"true"`
	HumanizeLockTTL        time.Duration `env:"HUMANIZE_LOCK_TTL" envDefault:"3m"`
	HumanizeRateLimitRPM   int           `env:"HUMANIZE_RATE_LIMIT_RPM" envDefault:"10"`
	HumanizeRateLimitBurst int           `env:"HUMANIZE_RATE_LIMIT_BURST" envDefault:"3"`

	// Per-IP limit in front of authentication (requests per second)
	IPRateLimitRPS   int `env:"IP_RATE_LIMIT_RPS" envDefault:"20"`
	IPRateLimitBurst int `env:"IP_RATE_LIMIT_BURST" envDefault:"40"`

	// Identity provider tokens
	JWTSecret   string `env:"IDENTITY_JWT_SECRET,required"`
	JWTIssuer   string `env:"IDENTITY_JWT_ISSUER" envDefault:""`
	JWTAudience string `env:"IDENTITY_JWT_AUDIENCE" envDefault:""`

	// Argon2id hash of the operator token for /api/v1/admin routes.
	// Admin routes are disabled when empty.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH" envDefault:""`

	// Debit reconciliation worker
	ReconcileEnabled bool `env:"RECONCILE_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminEnabled reports whether admin routes are mounted.
func (c *Config) AdminEnabled() bool {
	return c.AdminTokenHash != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// workflowWriteMargin is the time allowed for recording and debiting once the
// provider has returned output.
const workflowWriteMargin = 10 * time.Second

// WorkflowBudget is the longest a humanize workflow can wait on the provider:
// one submit plus every poll, each bounded by ProviderTimeout, and the waits
// between polls.
func (c *Config) WorkflowBudget() time.Duration {
	return time.Duration(c.PollAttempts)*(c.PollInterval+c.ProviderTimeout) + c.ProviderTimeout
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.PollAttempts < 1 {
		return errors.New("POLL_ATTEMPTS must be at least 1")
	}
	if c.PollInterval < 0 {
		return errors.New("POLL_INTERVAL must not be negative")
	}
	if c.MinTextLength < 1 {
		return errors.New("MIN_TEXT_LENGTH must be at least 1")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	need := c.WorkflowBudget() + workflowWriteMargin
	if c.WriteTimeout <= need {
		return fmt.Errorf("WRITE_TIMEOUT must exceed %s (humanize workflow budget plus write margin)", need)
	}
	if c.HumanizeLockTTL <= need {
		return fmt.Errorf("HUMANIZE_LOCK_TTL must exceed %s (humanize workflow budget plus write margin)", need)
	}
	return nil
}

// Load reads an optional dotenv file, parses environment variables and returns a Config.
// Variables already present in the environment take precedence over the file.
// Returns an error if required variables are missing.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
