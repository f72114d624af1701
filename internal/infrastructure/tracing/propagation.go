package tracing

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
)

// Propagation headers
const (
	TraceparentHeader = "traceparent"
	TracestateHeader  = "tracestate"
	RequestIDHeader   = "X-Request-ID"
	TraceIDHeader     = "X-Trace-ID"
	SpanIDHeader      = "X-Span-ID"
)

const (
	traceparentVersion = "00"
	sampledFlag        = "01"
)

// FormatTraceparent renders sc as a W3C traceparent header value
func FormatTraceparent(sc SpanContext) string {
	return traceparentVersion + "-" + sc.TraceID.String() + "-" + sc.SpanID.String() + "-" + sampledFlag
}

// ParseTraceparent parses a W3C traceparent header value.
// Unknown future versions are accepted if their first four fields parse.
func ParseTraceparent(value string) (SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) < 4 {
		return SpanContext{}, false
	}
	version, traceHex, spanHex, flags := parts[0], parts[1], parts[2], parts[3]

	if len(version) != 2 || !isLowerHex(version) || version == "ff" {
		return SpanContext{}, false
	}
	if version == traceparentVersion && len(parts) != 4 {
		return SpanContext{}, false
	}
	if len(traceHex) != 32 || len(spanHex) != 16 || len(flags) != 2 {
		return SpanContext{}, false
	}
	if !isLowerHex(traceHex) || !isLowerHex(spanHex) || !isLowerHex(flags) {
		return SpanContext{}, false
	}

	var sc SpanContext
	if _, err := hex.Decode(sc.TraceID[:], []byte(traceHex)); err != nil {
		return SpanContext{}, false
	}
	if _, err := hex.Decode(sc.SpanID[:], []byte(spanHex)); err != nil {
		return SpanContext{}, false
	}
	if !sc.IsValid() {
		return SpanContext{}, false
	}
	sc.Remote = true
	return sc, true
}

// Inject writes the active span context of ctx into header
func Inject(ctx context.Context, header http.Header) {
	sc := SpanContextFromContext(ctx)
	if !sc.IsValid() || header == nil {
		return
	}
	header.Set(TraceparentHeader, FormatTraceparent(sc))
}

// Extract reads a traceparent from header and, when valid, returns a
// context carrying it as the remote parent. Invalid headers are ignored.
func Extract(ctx context.Context, header http.Header) context.Context {
	if header == nil {
		return ctx
	}
	sc, ok := ParseTraceparent(header.Get(TraceparentHeader))
	if !ok {
		return ctx
	}
	return ContextWithRemoteSpanContext(ctx, sc)
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
