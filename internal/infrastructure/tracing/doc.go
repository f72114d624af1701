/*
Package tracing provides distributed tracing for the users backend.

# Overview

The package implements a small span engine following OpenTelemetry concepts:
spans with 128-bit trace IDs and 64-bit span IDs, SERVER/CLIENT/INTERNAL
kinds, attributes, exception events and an UNSET/OK/ERROR status. Ended
spans are handed to Processors; the export subpackage supplies a batching
processor that ships spans to an OTLP/HTTP collector.

The active span travels in context.Context. Deriving a context is the only
way to make a span the parent of later work, so nested scopes restore their
parent automatically when they return.

# Subpackages

  - lifecycle: root SERVER span per inbound request, keyed by request ID
  - sqltrace: database/sql driver decorator (driver, conn, stmt)
  - downstream: CLIENT spans around outbound HTTP calls
  - export: batch processor, OTLP and log exporters
  - tracetest: in-memory recorder for tests

# Usage

	tracer := tracing.New("user-service", logger.Logger,
		tracing.WithResource(resource),
		tracing.WithProcessor(batcher),
	)
	tracing.SetDefault(tracer)

	span, ctx := tracer.StartSpan(ctx, "operation", tracing.WithKind(tracing.KindInternal))
	defer span.End()

	span.SetAttribute("key", "value")
	if err != nil {
		span.Fail(err)
	}

# Trace Format

Inbound and outbound HTTP calls propagate the W3C traceparent header
(00-<trace-id>-<span-id>-01). Responses also carry X-Trace-ID and
X-Request-ID for log correlation.

# Failure Behavior

Tracing is fail-open. Misuse such as ending a span twice is a no-op, and a
panicking processor is logged and ignored.
*/
package tracing
