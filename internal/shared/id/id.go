// Package id mints the identifiers used by tracing.
//
//   - Trace IDs: the 128 bits of a ULID, so traces sort by creation time.
//   - Span IDs: 64 random bits, never all zero.
//   - Request IDs: "req_<ulid>" strings correlating a request's lifecycle
//     hooks and log lines. Clients may supply their own.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an inbound request
type RequestID string

// RequestPrefix is prepended to generated request IDs
const RequestPrefix = "req"

// maxRequestIDLen bounds client-supplied request IDs
const maxRequestIDLen = 128

// Generator draws trace, span and request IDs from one entropy source.
// It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
	seq     uint64
}

var defaultGenerator = sync.OnceValue(func() *Generator {
	return NewGenerator(rand.Reader)
})

// Default returns the process-wide generator backed by crypto/rand
func Default() *Generator { return defaultGenerator() }

// NewGenerator creates a generator reading from entropy. Tests pass a
// seeded reader for repeatable IDs.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: time.Now}
}

func (g *Generator) ulid() (ulid.ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.New(ulid.Timestamp(g.now()), g.entropy)
}

// TraceBytes returns 128 bits for a trace ID. The leading 48 bits are a
// millisecond timestamp.
func (g *Generator) TraceBytes() [16]byte {
	u, err := g.ulid()
	if err != nil || u == (ulid.ULID{}) {
		// Keep the timestamp and fill the rest from the span source.
		u = ulid.ULID{}
		_ = u.SetTime(ulid.Timestamp(g.now()))
		lo, hi := g.SpanBytes(), g.SpanBytes()
		copy(u[6:], lo[:])
		copy(u[14:], hi[:2])
	}
	return [16]byte(u)
}

// SpanBytes returns 64 random bits for a span ID. The result is never all
// zero, which W3C trace context reserves as invalid.
func (g *Generator) SpanBytes() [8]byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b [8]byte
	if _, err := io.ReadFull(g.entropy, b[:]); err == nil && b != ([8]byte{}) {
		return b
	}

	g.seq++
	n := (uint64(g.now().UnixNano()) ^ g.seq*0x9e3779b97f4a7c15) | 1
	for i := range b {
		b[i] = byte(n >> (8 * i))
	}
	return b
}

// RequestID mints a new request ID
func (g *Generator) RequestID() RequestID {
	u, err := g.ulid()
	if err != nil {
		u = ulid.ULID(g.TraceBytes())
	}
	return RequestID(RequestPrefix + "_" + u.String())
}

// NewRequestID mints a request ID from the default generator
func NewRequestID() RequestID {
	return Default().RequestID()
}

// RequestIDFromHeader returns the client-supplied ID when it is usable,
// otherwise a freshly generated one.
func RequestIDFromHeader(value string) RequestID {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxRequestIDLen || strings.ContainsAny(value, "\r\n") {
		return NewRequestID()
	}
	return RequestID(value)
}

func (id RequestID) String() string { return string(id) }
