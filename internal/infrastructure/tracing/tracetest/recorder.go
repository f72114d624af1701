// Package tracetest provides an in-memory span recorder for tests.
package tracetest

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
)

// Recorder keeps every ended span in memory
type Recorder struct {
	mu    sync.Mutex
	spans []*tracing.Span
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewTracer returns a tracer wired to a fresh recorder
func NewTracer(opts ...tracing.Option) (*tracing.Tracer, *Recorder) {
	rec := NewRecorder()
	opts = append(opts, tracing.WithProcessor(rec))
	return tracing.New("test", nil, opts...), rec
}

// OnEnd records the span
func (r *Recorder) OnEnd(span *tracing.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

// ForceFlush is a no-op
func (r *Recorder) ForceFlush(context.Context) error { return nil }

// Shutdown is a no-op
func (r *Recorder) Shutdown(context.Context) error { return nil }

// Ended returns recorded spans in end order
func (r *Recorder) Ended() []*tracing.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*tracing.Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// Len returns the number of recorded spans
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans)
}

// ByName returns recorded spans with the given name
func (r *Recorder) ByName(name string) []*tracing.Span {
	var out []*tracing.Span
	for _, s := range r.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

// ByKind returns recorded spans of the given kind
func (r *Recorder) ByKind(kind tracing.Kind) []*tracing.Span {
	var out []*tracing.Span
	for _, s := range r.Ended() {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets all recorded spans
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
}
