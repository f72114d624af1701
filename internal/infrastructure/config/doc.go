// Package config provides 12-factor configuration management for the users
// backend and its companion external service.
//
// Configuration is layered: built-in defaults, then an optional YAML or TOML
// file named by CONFIG_FILE, then environment variables. CLI flags in cmd/
// override all of them.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, shutdown grace, CORS origins)
//   - Database: driver (postgres or mysql) and connection pool
//   - External: companion service URL, client timeout and rate, simulated latency
//   - Telemetry: trace exporter, collector endpoint, resource, batch policy
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("exporting to %s\n", cfg.Telemetry.Endpoint)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//   - DB_DRIVER, DATABASE_URL, DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME
//   - EXTERNAL_SERVICE_URL, EXTERNAL_TIMEOUT, EXTERNAL_RPS, EXTERNAL_BURST,
//     EXTERNAL_PORT, EXTERNAL_MIN_LATENCY, EXTERNAL_MAX_LATENCY
//   - OTEL_TRACES_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_HEADERS,
//     OTEL_EXPORTER_OTLP_COMPRESSION, OTEL_EXPORTER_OTLP_MAX_ATTEMPTS,
//     OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION, DEPLOYMENT_ENVIRONMENT
//   - OTEL_BSP_MAX_QUEUE_SIZE, OTEL_BSP_MAX_EXPORT_BATCH_SIZE,
//     OTEL_BSP_SCHEDULE_DELAY, OTEL_BSP_EXPORT_TIMEOUT (durations use Go syntax, e.g. "500ms")
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
