package tracing

import (
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"strconv"
	"sync"
	"time"
)

// TraceID is a 128-bit trace identifier
type TraceID [16]byte

// SpanID is a 64-bit span identifier
type SpanID [8]byte

func (t TraceID) String() string { return hex.EncodeToString(t[:]) }
func (s SpanID) String() string  { return hex.EncodeToString(s[:]) }

// IsValid reports whether the ID is non-zero
func (t TraceID) IsValid() bool { return t != TraceID{} }

// IsValid reports whether the ID is non-zero
func (s SpanID) IsValid() bool { return s != SpanID{} }

// SpanContext is the propagated identity of a span
type SpanContext struct {
	TraceID TraceID
	SpanID  SpanID
	// Remote is set when the context was extracted from an inbound carrier.
	Remote bool
}

// IsValid reports whether both IDs are set
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// Kind classifies the role of a span in a trace
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "SERVER"
	case KindClient:
		return "CLIENT"
	default:
		return "INTERNAL"
	}
}

// StatusCode is the outcome of a span
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Status is a span outcome plus an optional message
type Status struct {
	Code    StatusCode
	Message string
}

// Event is a timestamped annotation on a span
type Event struct {
	Time       time.Time
	Name       string
	Attributes map[string]any
}

// Exception event name and attribute keys
const (
	ExceptionEvent          = "exception"
	ExceptionTypeKey        = "exception.type"
	ExceptionMessageKey     = "exception.message"
	ExceptionStacktraceKey  = "exception.stacktrace"
	exceptionMessageMaxSize = 4096
)

// Span represents a single timed operation in a trace.
//
// A span is mutable until End is called. After that every mutator is a
// no-op and the span may be read concurrently by exporters. All methods are
// safe on a nil receiver.
type Span struct {
	tracer *Tracer

	mu         sync.Mutex
	sc         SpanContext
	parent     SpanContext
	name       string
	kind       Kind
	start      time.Time
	end        time.Time
	attributes map[string]any
	status     Status
	events     []Event
	ended      bool
}

// SpanContext returns the identity of the span
func (s *Span) SpanContext() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.sc
}

// Parent returns the parent span context; it is invalid for roots
func (s *Span) Parent() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.parent
}

// Name returns the span name
func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Kind returns the span kind
func (s *Span) Kind() Kind {
	if s == nil {
		return KindInternal
	}
	return s.kind
}

// StartTime returns when the span started
func (s *Span) StartTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.start
}

// EndTime returns when the span ended, or the zero time
func (s *Span) EndTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Duration returns end - start for ended spans, zero otherwise
func (s *Span) Duration() time.Duration {
	end := s.EndTime()
	if end.IsZero() {
		return 0
	}
	return end.Sub(s.start)
}

// Ended reports whether End has been called
func (s *Span) Ended() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// IsRecording reports whether mutations are still accepted
func (s *Span) IsRecording() bool {
	return !s.Ended()
}

// Attributes returns a copy of the span attributes
func (s *Span) Attributes() map[string]any {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.attributes)
}

// Attribute returns one attribute value
func (s *Span) Attribute(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes[key]
	return v, ok
}

// Status returns the current status
func (s *Span) Status() Status {
	if s == nil {
		return Status{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns a copy of the recorded events
func (s *Span) Events() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// SetName renames the span
func (s *Span) SetName(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.name = name
	}
}

// SetAttribute sets one attribute; last write wins
func (s *Span) SetAttribute(key string, value any) {
	if s == nil || key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attributes[key] = normalize(value)
}

// SetAttributes sets several attributes in order
func (s *Span) SetAttributes(attrs ...Attribute) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for _, a := range attrs {
		if a.Key != "" {
			s.attributes[a.Key] = normalize(a.Value)
		}
	}
}

// SetStatus sets the span status. The message is kept only for StatusError.
// Setting StatusUnset is ignored.
func (s *Span) SetStatus(code StatusCode, message string) {
	if s == nil || code == StatusUnset {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if code != StatusError {
		message = ""
	}
	s.status = Status{Code: code, Message: message}
}

// AddEvent appends a named event
func (s *Span) AddEvent(name string, attrs ...Attribute) {
	if s == nil {
		return
	}
	now := s.tracer.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	var values map[string]any
	if len(attrs) > 0 {
		values = make(map[string]any, len(attrs))
		for _, a := range attrs {
			values[a.Key] = normalize(a.Value)
		}
	}
	s.events = append(s.events, Event{Time: now, Name: name, Attributes: values})
}

// RecordError appends an exception event carrying the error type and
// message. It does not change the span status.
func (s *Span) RecordError(err error, attrs ...Attribute) {
	if s == nil || err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > exceptionMessageMaxSize {
		msg = msg[:exceptionMessageMaxSize]
	}
	all := append([]Attribute{
		String(ExceptionTypeKey, fmt.Sprintf("%T", err)),
		String(ExceptionMessageKey, msg),
	}, attrs...)
	s.AddEvent(ExceptionEvent, all...)
}

// Fail records err and marks the span as failed with its message
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.RecordError(err)
	s.SetStatus(StatusError, err.Error())
}

// End finishes the span and hands it to the tracer's processors.
// Only the first call has an effect.
func (s *Span) End() {
	if !s.finish() {
		return
	}
	s.tracer.onEnd(s)
}

// Discard ends the span without exporting it. Used when the traced
// operation turned out not to run at all.
func (s *Span) Discard() {
	s.finish()
}

func (s *Span) finish() bool {
	if s == nil {
		return false
	}
	now := s.tracer.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	if now.Before(s.start) {
		now = s.start
	}
	s.end = now
	s.ended = true
	return true
}

// normalize reduces attribute values to string, int64, float64 or bool
func normalize(v any) any {
	switch x := v.(type) {
	case string, bool, int64:
		return x
	case float64:
		return finite(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return unsigned(uint64(x))
	case uint64:
		return unsigned(x)
	case float32:
		return finite(float64(x))
	case time.Duration:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// unsigned keeps values above MaxInt64 exact as decimal strings
func unsigned(x uint64) any {
	if x > math.MaxInt64 {
		return strconv.FormatUint(x, 10)
	}
	return int64(x)
}

// finite stores NaN and the infinities as strings; JSON has no encoding
// for them.
func finite(x float64) any {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "+Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	return x
}
