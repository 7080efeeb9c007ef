package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/dualtx/service/ledger"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel string

	// Database configuration
	DatabaseURL string

	// Ledger configuration
	Owner         string
	AddressFormat string

	// NATS configuration. An empty URL disables event publishing.
	NATSURL string

	// Metrics configuration. An empty URL disables pushing.
	PushgatewayURL string
	MetricsJob     string

	// OperationTimeout bounds a single CLI operation, including journal writes.
	OperationTimeout time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is like Load but reads values through getenv. The CLI uses it to
// feed flag values through the same validation path.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{}
	var errs []error

	cfg.LogLevel = get("LOG_LEVEL", "info")
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.AddressFormat = get("ADDRESS_FORMAT", ledger.AddressFormatStellar)
	validator, err := ledger.NewAddressValidator(cfg.AddressFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("ADDRESS_FORMAT: %w", err))
	}

	cfg.Owner = getenv("LEDGER_OWNER")
	if cfg.Owner == "" {
		errs = append(errs, fmt.Errorf("LEDGER_OWNER is required"))
	} else if validator != nil {
		if err := validator.ValidateAddress(cfg.Owner); err != nil {
			errs = append(errs, fmt.Errorf("LEDGER_OWNER: %w", err))
		}
	}

	cfg.NATSURL = getenv("NATS_URL")
	cfg.PushgatewayURL = getenv("PUSHGATEWAY_URL")
	cfg.MetricsJob = get("METRICS_JOB", "dualtx")

	timeoutStr := get("OPERATION_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		errs = append(errs, fmt.Errorf("OPERATION_TIMEOUT: invalid duration %q: %w", timeoutStr, err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("OPERATION_TIMEOUT must be positive"))
	} else {
		cfg.OperationTimeout = timeout
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	validator, err := ledger.NewAddressValidator(c.AddressFormat)
	if err != nil {
		errs = append(errs, err)
	}

	if c.Owner == "" {
		errs = append(errs, fmt.Errorf("Owner is required"))
	} else if validator != nil {
		if err := validator.ValidateAddress(c.Owner); err != nil {
			errs = append(errs, fmt.Errorf("Owner: %w", err))
		}
	}

	if c.PushgatewayURL != "" && c.MetricsJob == "" {
		errs = append(errs, fmt.Errorf("MetricsJob is required when PushgatewayURL is set"))
	}

	if c.OperationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OperationTimeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AddressValidator returns the validator for the configured address format.
func (c *Config) AddressValidator() (ledger.AddressValidator, error) {
	return ledger.NewAddressValidator(c.AddressFormat)
}

// ParseLogLevel converts a LOG_LEVEL value to a slog level.
func ParseLogLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: invalid level %q: must be debug, info, warn or error", levelStr)
	}
}
