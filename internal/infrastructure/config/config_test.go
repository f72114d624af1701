package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration)

	// Database config
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)

	// Telemetry config
	assert.Equal(t, ExporterOTLP, cfg.Telemetry.Exporter)
	assert.Equal(t, "http://jaeger:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "user-service", cfg.Telemetry.ServiceName)
	assert.Equal(t, 100, cfg.Telemetry.MaxQueueSize)
	assert.Equal(t, 10, cfg.Telemetry.MaxExportBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Telemetry.ScheduleDelay.Duration)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ExportTimeout.Duration)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                           "9000",
		"HOST":                           "127.0.0.1",
		"DB_DRIVER":                      "mysql",
		"DATABASE_URL":                   "root:secret@tcp(mysql:3306)/users",
		"EXTERNAL_SERVICE_URL":           "http://external:9090",
		"EXTERNAL_RETRIES":               "4",
		"OTEL_TRACES_EXPORTER":           "console",
		"OTEL_EXPORTER_OTLP_ENDPOINT":    "http://collector:4318",
		"OTEL_EXPORTER_OTLP_HEADERS":     "authorization:Bearer abc,x-tenant:users",
		"OTEL_SERVICE_NAME":              "users-api",
		"OTEL_BSP_MAX_EXPORT_BATCH_SIZE": "20",
		"OTEL_BSP_SCHEDULE_DELAY":        "2s",
		"LOG_LEVEL":                      "debug",
		"LOG_DEV":                        "true",
		"RATE_LIMIT_RPS":                 "500",
		"RATE_LIMIT_ENABLED":             "false",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "root:secret@tcp(mysql:3306)/users", cfg.Database.DSN)
	assert.Equal(t, "http://external:9090", cfg.External.BaseURL)
	assert.Equal(t, 4, cfg.External.Retries)
	assert.Equal(t, ExporterConsole, cfg.Telemetry.Exporter)
	assert.Equal(t, "http://collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer abc", "x-tenant": "users"}, cfg.Telemetry.Headers)
	assert.Equal(t, "users-api", cfg.Telemetry.ServiceName)
	assert.Equal(t, 20, cfg.Telemetry.MaxExportBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.ScheduleDelay.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://jaeger:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, 100, cfg.Telemetry.MaxQueueSize)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "7000"
telemetry:
  endpoint: http://otel:4318
  schedule_delay: 250ms
  max_queue_size: 50
database:
  driver: mysql
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "http://otel:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Telemetry.ScheduleDelay.Duration)
	assert.Equal(t, 50, cfg.Telemetry.MaxQueueSize)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)

	// Untouched sections keep defaults
	assert.Equal(t, 10, cfg.Telemetry.MaxExportBatchSize)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[telemetry]
exporter = "none"
export_timeout = "5s"

[logging]
level = "error"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ExporterNone, cfg.Telemetry.Exporter)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.ExportTimeout.Duration)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\n"), 0o600))
	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(unknown, []byte("x=1"), 0o600))
	assert.Error(t, LoadFile(unknown, Default()))

	assert.Error(t, LoadFile(filepath.Join(dir, "missing.yaml"), Default()))

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[telemetry\n"), 0o600))
	assert.Error(t, LoadFile(broken, Default()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
		{"zero queue", func(c *Config) { c.Telemetry.MaxQueueSize = 0 }},
		{"batch above queue", func(c *Config) { c.Telemetry.MaxExportBatchSize = 500 }},
		{"zero delay", func(c *Config) { c.Telemetry.ScheduleDelay = D(0) }},
		{"negative retries", func(c *Config) { c.External.Retries = -1 }},
		{"inverted latency", func(c *Config) { c.External.MaxLatency = D(time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("OTEL_BSP_SCHEDULE_DELAY", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.NotNil(t, LoadOrDefault())
}

func TestEnvironmentMapping(t *testing.T) {
	tests := []struct {
		env   string
		value string
		check func(t *testing.T, c *Config)
	}{
		{"OTEL_EXPORTER_OTLP_COMPRESSION", "none", func(t *testing.T, c *Config) {
			assert.Equal(t, "none", c.Telemetry.Compression)
		}},
		{"OTEL_BSP_MAX_QUEUE_SIZE", "2048", func(t *testing.T, c *Config) {
			assert.Equal(t, 2048, c.Telemetry.MaxQueueSize)
		}},
		{"OTEL_BSP_EXPORT_TIMEOUT", "1500ms", func(t *testing.T, c *Config) {
			assert.Equal(t, 1500*time.Millisecond, c.Telemetry.ExportTimeout.Duration)
		}},
		{"DEPLOYMENT_ENVIRONMENT", "staging", func(t *testing.T, c *Config) {
			assert.Equal(t, "staging", c.Telemetry.Environment)
		}},
		{"RATE_LIMIT_BURST", "7", func(t *testing.T, c *Config) {
			assert.Equal(t, 7, c.RateLimit.Burst)
			assert.Equal(t, 100, c.RateLimit.RequestsPerSecond)
		}},
		{"SHUTDOWN_TIMEOUT", "1m", func(t *testing.T, c *Config) {
			assert.Equal(t, time.Minute, c.Server.ShutdownTimeout.Duration)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			cfg, err := Load()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
