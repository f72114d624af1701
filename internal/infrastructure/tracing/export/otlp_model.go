package export

import (
	"math"
	"sort"
	"strconv"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
)

// OTLP/HTTP JSON request model (ExportTraceServiceRequest). IDs are hex
// encoded and 64-bit integers are decimal strings, as the JSON mapping
// requires.

// TracesRequest is the top-level OTLP trace export payload
type TracesRequest struct {
	ResourceSpans []ResourceSpans `json:"resourceSpans"`
}

// ResourceSpans groups spans by producing resource
type ResourceSpans struct {
	Resource   Resource     `json:"resource"`
	ScopeSpans []ScopeSpans `json:"scopeSpans"`
}

// Resource carries resource attributes
type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

// ScopeSpans groups spans by instrumentation scope
type ScopeSpans struct {
	Scope Scope  `json:"scope"`
	Spans []Span `json:"spans"`
}

// Scope names the instrumentation library
type Scope struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Span is one span in OTLP JSON form
type Span struct {
	TraceID           string     `json:"traceId"`
	SpanID            string     `json:"spanId"`
	ParentSpanID      string     `json:"parentSpanId,omitempty"`
	Name              string     `json:"name"`
	Kind              int        `json:"kind"`
	StartTimeUnixNano string     `json:"startTimeUnixNano"`
	EndTimeUnixNano   string     `json:"endTimeUnixNano"`
	Attributes        []KeyValue `json:"attributes,omitempty"`
	Events            []Event    `json:"events,omitempty"`
	Status            Status     `json:"status"`
}

// Event is a span event in OTLP JSON form
type Event struct {
	TimeUnixNano string     `json:"timeUnixNano"`
	Name         string     `json:"name"`
	Attributes   []KeyValue `json:"attributes,omitempty"`
}

// Status is the OTLP span status
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// KeyValue is an OTLP attribute
type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// AnyValue holds exactly one typed value
type AnyValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	IntValue    *string  `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

// OTLP enum values
const (
	otlpKindInternal = 1
	otlpKindServer   = 2
	otlpKindClient   = 3

	otlpStatusUnset = 0
	otlpStatusOK    = 1
	otlpStatusError = 2
)

// ScopeName identifies this instrumentation in exported payloads
const ScopeName = "github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"

// NewTracesRequest converts ended spans into one OTLP request. Span order
// is preserved.
func NewTracesRequest(res tracing.Resource, spans []*tracing.Span) TracesRequest {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		out = append(out, convertSpan(s))
	}

	return TracesRequest{
		ResourceSpans: []ResourceSpans{{
			Resource: Resource{Attributes: convertAttributes(res.Attributes())},
			ScopeSpans: []ScopeSpans{{
				Scope: Scope{Name: ScopeName},
				Spans: out,
			}},
		}},
	}
}

func convertSpan(s *tracing.Span) Span {
	sc := s.SpanContext()
	span := Span{
		TraceID:           sc.TraceID.String(),
		SpanID:            sc.SpanID.String(),
		Name:              s.Name(),
		Kind:              convertKind(s.Kind()),
		StartTimeUnixNano: unixNano(s.StartTime().UnixNano()),
		EndTimeUnixNano:   unixNano(s.EndTime().UnixNano()),
		Attributes:        convertMap(s.Attributes()),
		Status:            convertStatus(s.Status()),
	}
	if parent := s.Parent(); parent.SpanID.IsValid() {
		span.ParentSpanID = parent.SpanID.String()
	}
	for _, e := range s.Events() {
		span.Events = append(span.Events, Event{
			TimeUnixNano: unixNano(e.Time.UnixNano()),
			Name:         e.Name,
			Attributes:   convertMap(e.Attributes),
		})
	}
	return span
}

func convertKind(k tracing.Kind) int {
	switch k {
	case tracing.KindServer:
		return otlpKindServer
	case tracing.KindClient:
		return otlpKindClient
	default:
		return otlpKindInternal
	}
}

func convertStatus(s tracing.Status) Status {
	switch s.Code {
	case tracing.StatusOK:
		return Status{Code: otlpStatusOK}
	case tracing.StatusError:
		return Status{Code: otlpStatusError, Message: s.Message}
	default:
		return Status{Code: otlpStatusUnset}
	}
}

func convertAttributes(attrs []tracing.Attribute) []KeyValue {
	out := make([]KeyValue, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, KeyValue{Key: a.Key, Value: convertValue(a.Value)})
	}
	return out
}

// convertMap sorts keys so payloads are deterministic
func convertMap(m map[string]any) []KeyValue {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyValue{Key: k, Value: convertValue(m[k])})
	}
	return out
}

func convertValue(v any) AnyValue {
	switch x := v.(type) {
	case bool:
		return AnyValue{BoolValue: &x}
	case int64:
		s := strconv.FormatInt(x, 10)
		return AnyValue{IntValue: &s}
	case int:
		s := strconv.Itoa(x)
		return AnyValue{IntValue: &s}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			s := strconv.FormatFloat(x, 'g', -1, 64)
			return AnyValue{StringValue: &s}
		}
		return AnyValue{DoubleValue: &x}
	case string:
		return AnyValue{StringValue: &x}
	default:
		s := ""
		return AnyValue{StringValue: &s}
	}
}

func unixNano(n int64) string {
	return strconv.FormatInt(n, 10)
}
