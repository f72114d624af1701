package tracing

import "sync/atomic"

var (
	defaultTracer atomic.Pointer[Tracer]
	noopTracer    = NewNoop()
)

// Default returns the process default tracer. Until SetDefault is called
// it is a tracer whose spans are never exported.
func Default() *Tracer {
	if t := defaultTracer.Load(); t != nil {
		return t
	}
	return noopTracer
}

// SetDefault replaces the process default tracer. Passing nil restores the
// non-exporting tracer.
func SetDefault(t *Tracer) {
	defaultTracer.Store(t)
}
