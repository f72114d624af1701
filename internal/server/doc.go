// Package server wires the users API and the companion external service.
//
// Both processes share the same stack:
//   - zap logging (infrastructure/logging)
//   - a tracer whose exporter is picked by OTEL_TRACES_EXPORTER
//   - Prometheus metrics on /metrics, served from a private registry
//   - gin with the lifecycle tracing middleware first, then recovery,
//     request metrics, CORS and optional rate limiting
//
// The users API additionally opens its database through sqltrace and calls
// the external service through a traced, rate-limited, circuit-broken
// client.
//
// Shutdown order: HTTP drain, then tracer flush, then database close, all
// bounded by the caller's context.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	srv, err := server.New(ctx, cfg)
//	go srv.Run()
//	<-ctx.Done()
//	srv.Shutdown(shutdownCtx)
package server
