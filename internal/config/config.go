package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers understood by the composition root.
const (
	DriverBadger   = "badger"
	DriverSurreal  = "surreal"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":5000"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"badger"`
	BadgerPath  string `envconfig:"BADGER_PATH"`

	DBUrl  string `envconfig:"SURREAL_URL"`
	DBUser string `envconfig:"SURREAL_USER"`
	DBPass string `envconfig:"SURREAL_PASS"`
	DBNs   string `envconfig:"SURREAL_NS" default:"batepapo"`
	DBDb   string `envconfig:"SURREAL_DB" default:"batepapo"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	DBQueryTimeout   time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`
	DBExecuteTimeout time.Duration `envconfig:"DB_EXECUTE_TIMEOUT" default:"5s"`

	SweepInterval  time.Duration `envconfig:"PRESENCE_SWEEP_INTERVAL" default:"15s"`
	StaleThreshold time.Duration `envconfig:"PRESENCE_STALE_THRESHOLD" default:"10s"`

	SessionSecret      string   `envconfig:"SESSION_SECRET" default:"batepapo-dev-secret-change-me"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	NameLocale         string   `envconfig:"NAME_LOCALE" default:"pt-BR"`
	CORSAllowOrigins   []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`

	TracingEnabled     bool   `envconfig:"PUBSUB_TRACING_ENABLED" default:"false"`
	TracingServiceName string `envconfig:"PUBSUB_TRACING_SERVICE_NAME" default:"batepapo"`
	TracingZipkinURL   string `envconfig:"PUBSUB_TRACING_ZIPKIN_URL" default:"http://localhost:9411/api/v2/spans"`
}

// New loads configuration from a .env file, when present, and the process
// environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return Load()
}

// Load decodes the process environment without touching .env files.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the loaded values are usable together.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverBadger:
	case DriverSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			errs = append(errs, errors.New("SURREAL_URL, SURREAL_NS and SURREAL_DB are required for the surreal driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	for name, d := range map[string]time.Duration{
		"DB_QUERY_TIMEOUT":         c.DBQueryTimeout,
		"DB_EXECUTE_TIMEOUT":       c.DBExecuteTimeout,
		"PRESENCE_SWEEP_INTERVAL":  c.SweepInterval,
		"PRESENCE_STALE_THRESHOLD": c.StaleThreshold,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}

	return errors.Join(errs...)
}
