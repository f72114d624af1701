package tracing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Context keys for trace propagation
type contextKey string

const (
	spanKey       contextKey = "span"
	remoteSpanKey contextKey = "remote_span_context"
)

// ContextWithSpan returns a copy of ctx with span as the active span
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	if span == nil {
		return ctx
	}
	return context.WithValue(ctx, spanKey, span)
}

// SpanFromContext returns the active span, or nil
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}

// ContextWithRemoteSpanContext records a parent received from another process
func ContextWithRemoteSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	sc.Remote = true
	return context.WithValue(ctx, remoteSpanKey, sc)
}

// RemoteSpanContextFromContext returns the extracted remote parent, if any
func RemoteSpanContextFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(remoteSpanKey).(SpanContext)
	return sc
}

// SpanContextFromContext returns the context of the active span, falling
// back to the remote parent
func SpanContextFromContext(ctx context.Context) SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.SpanContext()
	}
	return RemoteSpanContextFromContext(ctx)
}

// GetTraceID retrieves the trace ID from context as a hex string
func GetTraceID(ctx context.Context) string {
	sc := SpanContextFromContext(ctx)
	if !sc.TraceID.IsValid() {
		return ""
	}
	return sc.TraceID.String()
}

// GetSpanID retrieves the active span ID from context as a hex string
func GetSpanID(ctx context.Context) string {
	sc := SpanContextFromContext(ctx)
	if !sc.SpanID.IsValid() {
		return ""
	}
	return sc.SpanID.String()
}

// LogFields returns zap fields correlating a log line with the active span
func LogFields(ctx context.Context) []zap.Field {
	sc := SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID.String()),
		zap.String("span_id", sc.SpanID.String()),
	}
}

// FormatTrace returns a formatted trace string for logging
func FormatTrace(sc SpanContext) string {
	return fmt.Sprintf("[trace:%s span:%s]", sc.TraceID, sc.SpanID)
}
