// Package main is the entry point for the users API.
//
// The server exposes a small users REST API backed by PostgreSQL or MySQL
// and enriches user lookups with data from the external service. Every
// request, SQL statement and downstream call is traced and exported to an
// OTLP/HTTP collector.
//
// Configuration:
//   - Defaults for development
//   - Optional YAML/TOML file named by CONFIG_FILE
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -db "postgres://..." -external http://external-service:8080
//
//	# Development mode (colored logs, spans logged instead of exported)
//	./server -dev -exporter console
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, flushing pending spans
package main
