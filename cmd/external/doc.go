// Package main runs the companion external service that the users API
// calls for enrichment data. It continues the caller's trace from the
// traceparent header and reports its own spans under its service name.
//
// Usage:
//
//	./external -port 8080 -min-latency 50ms -max-latency 150ms
package main
