package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/shared/id"
	"go.uber.org/zap"
)

// State is the position of a request in its lifecycle
type State int

const (
	StatePending State = iota
	StateActive
	StateFailed
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StateFailed:
		return "FAILED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// RequestInfo describes an inbound request
type RequestInfo struct {
	Method    string
	Path      string
	URL       string
	Route     string
	UserAgent string
	// RequestID is the client-visible request ID recorded on the span. The
	// lifecycle key is used when it is empty.
	RequestID id.RequestID
}

// SpanName returns the SERVER span name for a request
func (r RequestInfo) SpanName() string {
	return r.Method + " " + r.Path
}

type request struct {
	span  *tracing.Span
	ctx   context.Context
	state State
}

// RequestTracer owns the root SERVER span of every in-flight request.
// Requests are keyed by request ID, so concurrent requests never share
// state. Calls with an unknown or finished request ID are no-ops.
type RequestTracer struct {
	tracer  *tracing.Tracer
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	inflight map[id.RequestID]*request
}

// Option configures a RequestTracer
type Option func(*RequestTracer)

// WithTracer sets the tracer; the process default is used otherwise
func WithTracer(t *tracing.Tracer) Option {
	return func(rt *RequestTracer) { rt.tracer = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(rt *RequestTracer) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithMetrics tracks open request spans in the in-flight gauge
func WithMetrics(m *monitoring.Metrics) Option {
	return func(rt *RequestTracer) { rt.metrics = m }
}

// New creates a request lifecycle tracer
func New(opts ...Option) *RequestTracer {
	rt := &RequestTracer{
		logger:   zap.NewNop(),
		inflight: make(map[id.RequestID]*request),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *RequestTracer) tracerFor() *tracing.Tracer {
	if rt.tracer != nil {
		return rt.tracer
	}
	return tracing.Default()
}

// OnRequestStart opens the SERVER span for a request and returns ctx with
// the span active. A remote parent already extracted into ctx becomes the
// span's parent. Starting a key that is already in flight is refused: ctx
// is returned unchanged and the other request's span is left alone.
func (rt *RequestTracer) OnRequestStart(ctx context.Context, reqID id.RequestID, info RequestInfo) context.Context {
	rt.mu.Lock()
	if _, ok := rt.inflight[reqID]; ok {
		rt.mu.Unlock()
		rt.logger.Warn("request already in flight", zap.String("request_id", reqID.String()))
		return ctx
	}
	req := &request{state: StatePending}
	rt.inflight[reqID] = req
	rt.mu.Unlock()

	visibleID := info.RequestID
	if visibleID == "" {
		visibleID = reqID
	}
	attrs := []tracing.Attribute{
		tracing.String(tracing.HTTPMethodKey, info.Method),
		tracing.String(tracing.HTTPURLKey, info.URL),
		tracing.String(tracing.HTTPTargetKey, info.Path),
		tracing.String(tracing.RequestIDKey, visibleID.String()),
	}
	if info.Route != "" {
		attrs = append(attrs, tracing.String(tracing.HTTPRouteKey, info.Route))
	}
	if info.UserAgent != "" {
		attrs = append(attrs, tracing.String(tracing.HTTPUserAgentKey, info.UserAgent))
	}

	span, spanCtx := rt.tracerFor().StartSpan(ctx, info.SpanName(),
		tracing.WithKind(tracing.KindServer),
		tracing.WithAttributes(attrs...),
	)

	rt.mu.Lock()
	req.span = span
	req.ctx = spanCtx
	req.state = StateActive
	rt.mu.Unlock()

	if rt.metrics != nil {
		rt.metrics.RequestStarted()
	}
	return spanCtx
}

// OnRequestException records err on the request's span and marks it
// failed. The span stays open until OnRequestEnd.
func (rt *RequestTracer) OnRequestException(reqID id.RequestID, err error) {
	if err == nil {
		return
	}
	rt.mu.Lock()
	req, ok := rt.inflight[reqID]
	if !ok || (req.state != StateActive && req.state != StateFailed) {
		rt.mu.Unlock()
		rt.logger.Debug("exception for unknown request", zap.String("request_id", reqID.String()), zap.Error(err))
		return
	}
	req.state = StateFailed
	span := req.span
	rt.mu.Unlock()

	span.Fail(err)
}

// OnRequestEnd records the response status and ends the request's span.
// Status codes of 400 and above mark the span ERROR unless an error
// status was already set; a failed request stays ERROR regardless of code.
func (rt *RequestTracer) OnRequestEnd(reqID id.RequestID, statusCode int) {
	req, ok := rt.remove(reqID)
	if !ok {
		rt.logger.Debug("end for unknown request", zap.String("request_id", reqID.String()))
		return
	}

	span := req.span
	span.SetAttribute(tracing.HTTPStatusCodeKey, statusCode)

	switch {
	case span.Status().Code == tracing.StatusError:
	case statusCode >= 400:
		span.SetStatus(tracing.StatusError, fmt.Sprintf("HTTP %d", statusCode))
	case req.state == StateFailed:
	default:
		span.SetStatus(tracing.StatusOK, "")
	}
	span.End()
}

// OnRequestAbort ends the span of a request that will never reach
// OnRequestEnd, such as one whose handler panicked or whose client went
// away. It is a no-op once the request has ended.
func (rt *RequestTracer) OnRequestAbort(reqID id.RequestID, reason error) {
	req, ok := rt.remove(reqID)
	if !ok {
		return
	}
	if reason == nil {
		reason = context.Canceled
	}
	req.span.Fail(reason)
	req.span.End()

	rt.logger.Warn("request aborted",
		append(tracing.LogFields(req.ctx),
			zap.String("request_id", reqID.String()),
			zap.Error(reason),
		)...)
}

func (rt *RequestTracer) remove(reqID id.RequestID) (*request, bool) {
	rt.mu.Lock()
	req, ok := rt.inflight[reqID]
	if !ok || req.span == nil {
		rt.mu.Unlock()
		return nil, false
	}
	delete(rt.inflight, reqID)
	req.state = StateCompleted
	rt.mu.Unlock()

	if rt.metrics != nil {
		rt.metrics.RequestFinished()
	}
	return req, true
}

// Context returns the context carrying the request's span
func (rt *RequestTracer) Context(reqID id.RequestID) (context.Context, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	req, ok := rt.inflight[reqID]
	if !ok || req.ctx == nil {
		return nil, false
	}
	return req.ctx, true
}

// State returns the lifecycle state of a request. Requests that are not in
// flight report StateCompleted.
func (rt *RequestTracer) State(reqID id.RequestID) State {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if req, ok := rt.inflight[reqID]; ok {
		return req.state
	}
	return StateCompleted
}

// InFlight returns the number of open requests
func (rt *RequestTracer) InFlight() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.inflight)
}
