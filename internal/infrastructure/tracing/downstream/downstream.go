package downstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// Attribute keys set on call spans
const (
	ResponseSuccessKey = "response.success"
	PeerServiceKey     = "peer.service"
)

// Caller performs one HTTP request and returns the status code and body.
// Implementations return an error only for transport failures.
type Caller interface {
	Call(ctx context.Context, method, url string, header http.Header) (int, []byte, error)
}

// CallerFunc adapts a function to Caller
type CallerFunc func(ctx context.Context, method, url string, header http.Header) (int, []byte, error)

// Call implements Caller
func (f CallerFunc) Call(ctx context.Context, method, url string, header http.Header) (int, []byte, error) {
	return f(ctx, method, url, header)
}

// Request describes one outbound call
type Request struct {
	// Service is the logical downstream name; the span is named
	// call_<Service>_service
	Service string
	Method  string
	URL     string
	Header  http.Header
	// Decode, when set, parses a 2xx body. A decode error degrades the
	// response like a failed call.
	Decode func(body []byte) error
}

// Response is the outcome of a call. OK is false for transport errors,
// non-2xx statuses and decode failures; the caller should then fall back
// to an empty result.
type Response struct {
	StatusCode int
	Body       []byte
	OK         bool
}

// Tracer wraps outbound calls in CLIENT spans. It never returns errors.
type Tracer struct {
	caller Caller
	tracer *tracing.Tracer
	logger *zap.Logger
}

// Option configures a Tracer
type Option func(*Tracer)

// WithTracer sets the tracer; the process default is used otherwise
func WithTracer(t *tracing.Tracer) Option {
	return func(d *Tracer) { d.tracer = t }
}

// WithLogger sets the logger for failed calls
func WithLogger(l *zap.Logger) Option {
	return func(d *Tracer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a downstream call tracer around caller
func New(caller Caller, opts ...Option) *Tracer {
	d := &Tracer{caller: caller, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SpanName returns the span name for calls to service
func SpanName(service string) string {
	return "call_" + service + "_service"
}

func (d *Tracer) tracerFor() *tracing.Tracer {
	if d.tracer != nil {
		return d.tracer
	}
	return tracing.Default()
}

// Do performs req inside a CLIENT span. The span's context is propagated to
// the downstream service through the traceparent header.
func (d *Tracer) Do(ctx context.Context, req Request) Response {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	span, ctx := d.tracerFor().StartSpan(ctx, SpanName(req.Service),
		tracing.WithKind(tracing.KindClient),
		tracing.WithAttributes(
			tracing.String(tracing.HTTPMethodKey, method),
			tracing.String(tracing.HTTPURLKey, req.URL),
			tracing.String(PeerServiceKey, req.Service),
		),
	)
	defer span.End()

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	tracing.Inject(ctx, header)

	status, body, err := d.call(ctx, method, req.URL, header)
	if err != nil {
		span.Fail(err)
		span.SetAttribute(ResponseSuccessKey, false)
		d.logger.Warn("downstream call failed",
			append(tracing.LogFields(ctx),
				zap.String("service", req.Service),
				zap.String("url", req.URL),
				zap.Error(err),
			)...)
		return Response{}
	}

	span.SetAttribute(tracing.HTTPStatusCodeKey, status)
	resp := Response{StatusCode: status, Body: body}

	if status < 200 || status >= 300 {
		span.SetStatus(tracing.StatusError, fmt.Sprintf("HTTP %d", status))
		span.SetAttribute(ResponseSuccessKey, false)
		d.logger.Warn("downstream call returned error status",
			append(tracing.LogFields(ctx),
				zap.String("service", req.Service),
				zap.String("url", req.URL),
				zap.Int("status", status),
			)...)
		return resp
	}

	if req.Decode != nil {
		if err := req.Decode(body); err != nil {
			span.Fail(fmt.Errorf("decode %s response: %w", req.Service, err))
			span.SetAttribute(ResponseSuccessKey, false)
			return resp
		}
	}

	span.SetStatus(tracing.StatusOK, "")
	span.SetAttribute(ResponseSuccessKey, true)
	resp.OK = true
	return resp
}

// call invokes the caller and turns a panic into an error so a broken
// client degrades like a failed call.
func (d *Tracer) call(ctx context.Context, method, url string, header http.Header) (status int, body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("downstream caller panicked: %v", r)
		}
	}()
	if d.caller == nil {
		return 0, nil, fmt.Errorf("no caller configured")
	}
	return d.caller.Call(ctx, method, url, header)
}
