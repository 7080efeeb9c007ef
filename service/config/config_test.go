package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "GCEZWKCA5VLDNRLN3RPRJMRZOX3Z6G5CHCGSNFHEYVXM3XOJMDS674JZ"

func TestLoad_ValidConfig(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("LEDGER_OWNER", testOwner)
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, testOwner, cfg.Owner)
	assert.Equal(t, "stellar", cfg.AddressFormat) // Default
	assert.Equal(t, "info", cfg.LogLevel)         // Default
	assert.Equal(t, "", cfg.NATSURL)              // Events disabled by default
	assert.Equal(t, "", cfg.PushgatewayURL)
	assert.Equal(t, "dualtx", cfg.MetricsJob)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	cleanupEnv()
	os.Setenv("LEDGER_OWNER", testOwner)
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_MissingOwner(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LEDGER_OWNER is required")
}

func TestLoad_OwnerMustMatchAddressFormat(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("LEDGER_OWNER", "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_OWNER")

	os.Setenv("ADDRESS_FORMAT", "solana")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "solana", cfg.AddressFormat)
}

func TestLoad_InvalidValues(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("LEDGER_OWNER", testOwner)
	os.Setenv("ADDRESS_FORMAT", "ethereum")
	os.Setenv("LOG_LEVEL", "verbose")
	os.Setenv("OPERATION_TIMEOUT", "soon")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)

	// All errors are reported at once.
	assert.Contains(t, err.Error(), "unknown address format")
	assert.Contains(t, err.Error(), "invalid level")
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_CustomValues(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("LEDGER_OWNER", "owner-1")
	os.Setenv("ADDRESS_FORMAT", "opaque")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	os.Setenv("METRICS_JOB", "dualtx-ops")
	os.Setenv("OPERATION_TIMEOUT", "5s")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "owner-1", cfg.Owner)
	assert.Equal(t, "opaque", cfg.AddressFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, "dualtx-ops", cfg.MetricsJob)
	assert.Equal(t, 5*time.Second, cfg.OperationTimeout)
}

func TestLoadFrom_Lookup(t *testing.T) {
	values := map[string]string{
		"DATABASE_URL": "postgres://flags/test",
		"LEDGER_OWNER": testOwner,
	}
	cfg, err := LoadFrom(func(key string) string { return values[key] })
	require.NoError(t, err)
	assert.Equal(t, "postgres://flags/test", cfg.DatabaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		DatabaseURL:      "postgres://localhost/test",
		Owner:            testOwner,
		AddressFormat:    "stellar",
		LogLevel:         "info",
		OperationTimeout: time.Second,
	}

	err := cfg.Validate()
	assert.NoError(t, err)

	v, err := cfg.AddressValidator()
	require.NoError(t, err)
	assert.NoError(t, v.ValidateAddress(testOwner))
}

func TestValidate_Invalid(t *testing.T) {
	cfg := &Config{
		AddressFormat:  "stellar",
		LogLevel:       "info",
		PushgatewayURL: "http://pushgateway:9091",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL is required")
	assert.Contains(t, err.Error(), "Owner is required")
	assert.Contains(t, err.Error(), "MetricsJob is required")
	assert.Contains(t, err.Error(), "OperationTimeout must be positive")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLogLevel("trace")
	require.Error(t, err)
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	cleanupEnv()
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	cleanupEnv()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("LEDGER_OWNER", testOwner)
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("LEDGER_OWNER")
	os.Unsetenv("ADDRESS_FORMAT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("NATS_URL")
	os.Unsetenv("PUSHGATEWAY_URL")
	os.Unsetenv("METRICS_JOB")
	os.Unsetenv("OPERATION_TIMEOUT")
}
