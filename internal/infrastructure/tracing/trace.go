package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/shared/id"
	"go.uber.org/zap"
)

// Processor receives spans as they end.
//
// OnEnd is called synchronously on the goroutine that ended the span and
// must not block on I/O.
type Processor interface {
	OnEnd(span *Span)
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Tracer creates spans and routes ended spans to its processors
type Tracer struct {
	resource Resource
	logger   *zap.Logger
	ids      *id.Generator
	clock    func() time.Time

	mu         sync.RWMutex
	processors []Processor
	shutdown   bool
}

// Option configures a Tracer
type Option func(*Tracer)

// WithProcessor registers a span processor
func WithProcessor(p Processor) Option {
	return func(t *Tracer) {
		if p != nil {
			t.processors = append(t.processors, p)
		}
	}
}

// WithResource sets the resource describing this process
func WithResource(r Resource) Option {
	return func(t *Tracer) {
		t.resource = r
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(t *Tracer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithIDGenerator overrides the identifier source
func WithIDGenerator(g *id.Generator) Option {
	return func(t *Tracer) {
		if g != nil {
			t.ids = g
		}
	}
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		resource: Resource{ServiceName: service},
		logger:   logger,
		ids:      id.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.resource.ServiceName == "" {
		t.resource.ServiceName = service
	}
	return t
}

// NewNoop creates a tracer without processors. Its spans are fully
// functional but never exported.
func NewNoop() *Tracer {
	return New("noop", nil)
}

// Resource returns the resource describing this process
func (t *Tracer) Resource() Resource {
	if t == nil {
		return Resource{}
	}
	return t.resource
}

// RegisterProcessor adds a processor after construction
func (t *Tracer) RegisterProcessor(p Processor) {
	if t == nil || p == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processors = append(t.processors, p)
}

// SpanOption configures a span at start
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       Kind
	attributes []Attribute
	newRoot    bool
	start      time.Time
}

// WithKind sets the span kind (default INTERNAL)
func WithKind(k Kind) SpanOption {
	return func(c *spanConfig) { c.kind = k }
}

// WithAttributes sets initial attributes
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *spanConfig) { c.attributes = append(c.attributes, attrs...) }
}

// WithNewRoot ignores any parent in the context
func WithNewRoot() SpanOption {
	return func(c *spanConfig) { c.newRoot = true }
}

// WithStartTime overrides the start timestamp
func WithStartTime(ts time.Time) SpanOption {
	return func(c *spanConfig) { c.start = ts }
}

// StartSpan creates a new span as a child of the span active in ctx, or of
// a remote parent extracted into ctx, or as a new root. The returned
// context carries the new span as the active one.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (*Span, context.Context) {
	if t == nil {
		t = Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	span := &Span{
		tracer:     t,
		name:       name,
		kind:       cfg.kind,
		attributes: make(map[string]any, len(cfg.attributes)+4),
	}

	var parentStart time.Time
	if !cfg.newRoot {
		if p := SpanFromContext(ctx); p != nil && p.sc.IsValid() {
			span.parent = p.sc
			parentStart = p.start
		} else if rc := RemoteSpanContextFromContext(ctx); rc.IsValid() {
			span.parent = rc
		}
	}

	if span.parent.IsValid() {
		span.sc.TraceID = span.parent.TraceID
	} else {
		span.sc.TraceID = TraceID(t.ids.TraceBytes())
	}
	span.sc.SpanID = SpanID(t.ids.SpanBytes())

	span.start = cfg.start
	if span.start.IsZero() {
		span.start = t.now()
	}
	// A child never starts before its parent.
	if span.start.Before(parentStart) {
		span.start = parentStart
	}

	for _, a := range cfg.attributes {
		if a.Key != "" {
			span.attributes[a.Key] = normalize(a.Value)
		}
	}

	return span, ContextWithSpan(ctx, span)
}

// Start is StartSpan on the process default tracer
func Start(ctx context.Context, name string, opts ...SpanOption) (*Span, context.Context) {
	return Default().StartSpan(ctx, name, opts...)
}

func (t *Tracer) now() time.Time {
	if t == nil || t.clock == nil {
		return time.Now()
	}
	return t.clock()
}

// onEnd fans an ended span out to the processors. A failing processor is
// logged and never affects the caller.
func (t *Tracer) onEnd(s *Span) {
	if t == nil {
		return
	}
	t.mu.RLock()
	processors := t.processors
	stopped := t.shutdown
	t.mu.RUnlock()
	if stopped {
		return
	}

	for _, p := range processors {
		t.deliver(p, s)
	}
}

func (t *Tracer) deliver(p Processor, s *Span) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span processor panicked",
				zap.String("trace_id", s.sc.TraceID.String()),
				zap.String("span_id", s.sc.SpanID.String()),
				zap.String("operation", s.Name()),
				zap.Any("panic", r),
			)
		}
	}()
	p.OnEnd(s)
}

// ForceFlush asks every processor to export what it holds
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	processors := t.processors
	t.mu.RUnlock()

	var errs []error
	for _, p := range processors {
		if err := p.ForceFlush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every processor. Spans ended afterwards are
// dropped. Calling Shutdown twice is a no-op.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	processors := t.processors
	t.mu.Unlock()

	var errs []error
	for _, p := range processors {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown span processor: %w", err))
		}
	}
	return errors.Join(errs...)
}
