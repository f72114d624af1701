package tracing_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/tracetest"
	"github.com/GriffinCanCode/UserTrace/backend/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanCreatesRoot(t *testing.T) {
	tracer, _ := tracetest.NewTracer()

	span, ctx := tracer.StartSpan(context.Background(), "root", tracing.WithKind(tracing.KindServer))

	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.Parent().IsValid())
	assert.Equal(t, tracing.KindServer, span.Kind())
	assert.Same(t, span, tracing.SpanFromContext(ctx))
}

func TestChildInheritsTrace(t *testing.T) {
	tracer, rec := tracetest.NewTracer()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, childCtx := tracer.StartSpan(ctx, "child")
	grandchild, _ := tracer.StartSpan(childCtx, "grandchild")

	grandchild.End()
	child.End()
	root.End()

	spans := rec.Ended()
	require.Len(t, spans, 3)

	byID := make(map[tracing.SpanID]*tracing.Span)
	for _, s := range spans {
		byID[s.SpanContext().SpanID] = s
		assert.Equal(t, root.SpanContext().TraceID, s.SpanContext().TraceID)
	}
	for _, s := range spans {
		if !s.Parent().IsValid() {
			continue
		}
		parent, ok := byID[s.Parent().SpanID]
		require.True(t, ok, "parent of %s must be in the trace", s.Name())
		assert.False(t, s.StartTime().Before(parent.StartTime()))
	}
	assert.Equal(t, child.SpanContext().SpanID, grandchild.Parent().SpanID)
}

func TestSiblingScopesRestoreParent(t *testing.T) {
	tracer, _ := tracetest.NewTracer()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	first, _ := tracer.StartSpan(ctx, "first")
	first.End()
	second, _ := tracer.StartSpan(ctx, "second")
	second.End()

	assert.Equal(t, root.SpanContext().SpanID, first.Parent().SpanID)
	assert.Equal(t, root.SpanContext().SpanID, second.Parent().SpanID)
}

func TestWithNewRootIgnoresParent(t *testing.T) {
	tracer, _ := tracetest.NewTracer()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	other, _ := tracer.StartSpan(ctx, "other", tracing.WithNewRoot())

	assert.False(t, other.Parent().IsValid())
	assert.NotEqual(t, root.SpanContext().TraceID, other.SpanContext().TraceID)
}

func TestEndIsIdempotent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	tracer, rec := tracetest.NewTracer(tracing.WithClock(clock))

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.End()
	first := span.EndTime()
	span.End()

	assert.Equal(t, first, span.EndTime())
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, time.Second, span.Duration())
}

func TestEndNeverBeforeStart(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		// Clock steps backwards between start and end.
		return base.Add(-time.Duration(calls) * time.Second)
	}
	tracer, _ := tracetest.NewTracer(tracing.WithClock(clock))

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.End()

	assert.False(t, span.EndTime().Before(span.StartTime()))
}

func TestMutationsIgnoredAfterEnd(t *testing.T) {
	tracer, _ := tracetest.NewTracer()

	span, _ := tracer.StartSpan(context.Background(), "op",
		tracing.WithAttributes(tracing.String("before", "yes")))
	span.End()

	span.SetAttribute("after", "yes")
	span.SetStatus(tracing.StatusError, "late")
	span.RecordError(errors.New("late"))
	span.SetName("renamed")

	attrs := span.Attributes()
	assert.Equal(t, "yes", attrs["before"])
	assert.NotContains(t, attrs, "after")
	assert.Equal(t, tracing.StatusUnset, span.Status().Code)
	assert.Empty(t, span.Events())
	assert.Equal(t, "op", span.Name())
}

func TestAttributesNormalized(t *testing.T) {
	tracer, _ := tracetest.NewTracer()
	span, _ := tracer.StartSpan(context.Background(), "op")

	span.SetAttribute("int", 42)
	span.SetAttribute("uint", uint32(7))
	span.SetAttribute("float", float32(1.5))
	span.SetAttribute("bool", true)
	span.SetAttribute("dur", 2*time.Second)
	span.SetAttribute("int", 43)

	attrs := span.Attributes()
	assert.Equal(t, int64(43), attrs["int"])
	assert.Equal(t, int64(7), attrs["uint"])
	assert.Equal(t, float64(1.5), attrs["float"])
	assert.Equal(t, true, attrs["bool"])
	assert.Equal(t, "2s", attrs["dur"])
}

func TestAttributesOutOfRange(t *testing.T) {
	tracer, _ := tracetest.NewTracer()
	span, _ := tracer.StartSpan(context.Background(), "op")

	span.SetAttribute("big", uint64(math.MaxUint64))
	span.SetAttribute("max", uint64(math.MaxInt64))
	span.SetAttribute("nan", math.NaN())
	span.SetAttributes(tracing.Float64("pos", math.Inf(1)))
	span.SetAttribute("neg", float32(math.Inf(-1)))

	attrs := span.Attributes()
	assert.Equal(t, "18446744073709551615", attrs["big"])
	assert.Equal(t, int64(math.MaxInt64), attrs["max"])
	assert.Equal(t, "NaN", attrs["nan"])
	assert.Equal(t, "+Inf", attrs["pos"])
	assert.Equal(t, "-Inf", attrs["neg"])
}

func TestRecordErrorAndStatus(t *testing.T) {
	tracer, _ := tracetest.NewTracer()
	span, _ := tracer.StartSpan(context.Background(), "op")

	span.Fail(errors.New("boom"))

	events := span.Events()
	require.Len(t, events, 1)
	assert.Equal(t, tracing.ExceptionEvent, events[0].Name)
	assert.Equal(t, "boom", events[0].Attributes[tracing.ExceptionMessageKey])
	assert.Equal(t, "*errors.errorString", events[0].Attributes[tracing.ExceptionTypeKey])
	assert.Equal(t, tracing.Status{Code: tracing.StatusError, Message: "boom"}, span.Status())

	span.SetStatus(tracing.StatusUnset, "")
	assert.Equal(t, tracing.StatusError, span.Status().Code)

	span.SetStatus(tracing.StatusOK, "ignored")
	assert.Equal(t, tracing.Status{Code: tracing.StatusOK}, span.Status())
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *tracing.Span

	assert.NotPanics(t, func() {
		span.SetAttribute("k", "v")
		span.SetStatus(tracing.StatusError, "x")
		span.RecordError(errors.New("x"))
		span.End()
		span.Discard()
	})
	assert.Nil(t, tracing.SpanFromContext(context.Background()))
}

func TestDiscardSkipsProcessors(t *testing.T) {
	tracer, rec := tracetest.NewTracer()

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.Discard()
	span.End()

	assert.True(t, span.Ended())
	assert.Equal(t, 0, rec.Len())
}

type panickingProcessor struct{}

func (panickingProcessor) OnEnd(*tracing.Span)              { panic("processor failure") }
func (panickingProcessor) ForceFlush(context.Context) error { return nil }
func (panickingProcessor) Shutdown(context.Context) error   { return nil }

func TestProcessorPanicDoesNotPropagate(t *testing.T) {
	rec := tracetest.NewRecorder()
	tracer := tracing.New("test", nil,
		tracing.WithProcessor(panickingProcessor{}),
		tracing.WithProcessor(rec),
	)

	span, _ := tracer.StartSpan(context.Background(), "op")
	assert.NotPanics(t, span.End)
	assert.Equal(t, 1, rec.Len())
}

func TestShutdownStopsDelivery(t *testing.T) {
	tracer, rec := tracetest.NewTracer()

	require.NoError(t, tracer.Shutdown(context.Background()))
	require.NoError(t, tracer.Shutdown(context.Background()))

	span, _ := tracer.StartSpan(context.Background(), "late")
	span.End()
	assert.Equal(t, 0, rec.Len())
}

func TestConcurrentSpans(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	root, ctx := tracer.StartSpan(context.Background(), "root")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			child, _ := tracer.StartSpan(ctx, "child")
			child.SetAttribute("k", "v")
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	assert.Equal(t, 51, rec.Len())
	for _, s := range rec.ByName("child") {
		assert.Equal(t, root.SpanContext().SpanID, s.Parent().SpanID)
	}
}

func TestDefaultTracer(t *testing.T) {
	t.Cleanup(func() { tracing.SetDefault(nil) })

	noop := tracing.Default()
	require.NotNil(t, noop)

	tracer, rec := tracetest.NewTracer()
	tracing.SetDefault(tracer)
	assert.Same(t, tracer, tracing.Default())

	span, _ := tracing.Start(context.Background(), "via-default")
	span.End()
	assert.Equal(t, 1, rec.Len())

	tracing.SetDefault(nil)
	assert.Same(t, noop, tracing.Default())
}

func TestTraceparentRoundTrip(t *testing.T) {
	tracer, _ := tracetest.NewTracer()
	span, ctx := tracer.StartSpan(context.Background(), "client")

	header := http.Header{}
	tracing.Inject(ctx, header)
	value := header.Get(tracing.TraceparentHeader)
	assert.Equal(t, "00-"+span.SpanContext().TraceID.String()+"-"+span.SpanContext().SpanID.String()+"-01", value)

	serverCtx := tracing.Extract(context.Background(), header)
	server, _ := tracer.StartSpan(serverCtx, "server")

	assert.Equal(t, span.SpanContext().TraceID, server.SpanContext().TraceID)
	assert.Equal(t, span.SpanContext().SpanID, server.Parent().SpanID)
	assert.True(t, server.Parent().Remote)
}

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"valid", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", true},
		{"future version with extra field", "01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01-extra", true},
		{"version 00 with extra field", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01-extra", false},
		{"forbidden version", "ff-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", false},
		{"zero trace", "00-00000000000000000000000000000000-00f067aa0ba902b7-01", false},
		{"zero span", "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01", false},
		{"uppercase", "00-4BF92F3577B34DA6A3CE929D0E0E4736-00F067AA0BA902B7-01", false},
		{"short", "00-4bf92f35-00f067aa0ba902b7-01", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tracing.ParseTraceparent(tt.value)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestExtractIgnoresInvalidHeader(t *testing.T) {
	header := http.Header{}
	header.Set(tracing.TraceparentHeader, "garbage")

	ctx := tracing.Extract(context.Background(), header)
	assert.False(t, tracing.RemoteSpanContextFromContext(ctx).IsValid())
}

func TestLogFields(t *testing.T) {
	tracer, _ := tracetest.NewTracer()

	assert.Nil(t, tracing.LogFields(context.Background()))

	span, ctx := tracer.StartSpan(context.Background(), "op")
	fields := tracing.LogFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, span.SpanContext().TraceID.String(), fields[0].String)
	assert.Equal(t, span.SpanContext().TraceID.String(), tracing.GetTraceID(ctx))
}

type brokenEntropy struct{}

func (brokenEntropy) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestStartSpanSurvivesBrokenEntropy(t *testing.T) {
	tracer := tracing.New("user-service", nil, tracing.WithIDGenerator(id.NewGenerator(brokenEntropy{})))

	a, _ := tracer.StartSpan(context.Background(), "a")
	b, _ := tracer.StartSpan(context.Background(), "b")

	assert.True(t, a.SpanContext().IsValid())
	assert.True(t, b.SpanContext().IsValid())
	assert.NotEqual(t, a.SpanContext().SpanID, b.SpanContext().SpanID)
}
