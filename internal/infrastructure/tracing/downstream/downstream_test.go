package downstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/tracetest"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	status int
	body   []byte
	err    error

	gotMethod string
	gotURL    string
	gotHeader http.Header
}

func (f *fakeCaller) Call(_ context.Context, method, url string, header http.Header) (int, []byte, error) {
	f.gotMethod, f.gotURL, f.gotHeader = method, url, header
	return f.status, f.body, f.err
}

func TestSuccessfulCall(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	caller := &fakeCaller{status: 200, body: []byte(`{"external_score":87}`)}
	d := New(caller, WithTracer(tracer))

	root, ctx := tracer.StartSpan(context.Background(), "GET /api/users/1", tracing.WithKind(tracing.KindServer))
	var decoded map[string]any
	resp := d.Do(ctx, Request{
		Service: "external",
		URL:     "http://external-service:8080/api/external/user/1",
		Decode:  func(b []byte) error { return sonic.Unmarshal(b, &decoded) },
	})
	root.End()

	assert.True(t, resp.OK)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(87), decoded["external_score"])
	assert.Equal(t, http.MethodGet, caller.gotMethod)

	spans := rec.ByName("call_external_service")
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, tracing.KindClient, span.Kind())
	assert.Equal(t, root.SpanContext().SpanID, span.Parent().SpanID)
	assert.Equal(t, tracing.StatusOK, span.Status().Code)

	attrs := span.Attributes()
	assert.Equal(t, "GET", attrs[tracing.HTTPMethodKey])
	assert.Equal(t, caller.gotURL, attrs[tracing.HTTPURLKey])
	assert.Equal(t, int64(200), attrs[tracing.HTTPStatusCodeKey])
	assert.Equal(t, true, attrs[ResponseSuccessKey])
	assert.Equal(t, "external", attrs[PeerServiceKey])

	// The downstream service sees the CLIENT span as its parent.
	assert.Equal(t, tracing.FormatTraceparent(span.SpanContext()), caller.gotHeader.Get(tracing.TraceparentHeader))
}

func TestTransportErrorDegrades(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	d := New(&fakeCaller{err: errors.New("dial tcp: connection refused")}, WithTracer(tracer))

	resp := d.Do(context.Background(), Request{Service: "external", URL: "http://external-service:8080/x"})

	assert.Equal(t, Response{}, resp)
	require.Equal(t, 1, rec.Len())
	span := rec.Ended()[0]
	assert.Equal(t, tracing.StatusError, span.Status().Code)
	assert.Equal(t, "dial tcp: connection refused", span.Status().Message)
	assert.Equal(t, false, span.Attributes()[ResponseSuccessKey])
	assert.NotContains(t, span.Attributes(), tracing.HTTPStatusCodeKey)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, tracing.ExceptionEvent, span.Events()[0].Name)
}

func TestErrorStatusDegrades(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	d := New(&fakeCaller{status: 503, body: []byte("unavailable")}, WithTracer(tracer))

	resp := d.Do(context.Background(), Request{Service: "external", URL: "http://x"})

	assert.False(t, resp.OK)
	assert.Equal(t, 503, resp.StatusCode)

	span := rec.Ended()[0]
	assert.Equal(t, tracing.StatusError, span.Status().Code)
	assert.Equal(t, "HTTP 503", span.Status().Message)
	assert.Equal(t, int64(503), span.Attributes()[tracing.HTTPStatusCodeKey])
	assert.Equal(t, false, span.Attributes()[ResponseSuccessKey])
	assert.Empty(t, span.Events())
}

func TestDecodeFailureDegrades(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	d := New(&fakeCaller{status: 200, body: []byte("not json")}, WithTracer(tracer))

	var v map[string]any
	resp := d.Do(context.Background(), Request{
		Service: "external",
		URL:     "http://x",
		Decode:  func(b []byte) error { return sonic.Unmarshal(b, &v) },
	})

	assert.False(t, resp.OK)
	span := rec.Ended()[0]
	assert.Equal(t, tracing.StatusError, span.Status().Code)
	assert.Contains(t, span.Status().Message, "decode external response")
}

func TestCallerPanicDegrades(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	d := New(CallerFunc(func(context.Context, string, string, http.Header) (int, []byte, error) {
		panic("nil map")
	}), WithTracer(tracer))

	assert.NotPanics(t, func() {
		resp := d.Do(context.Background(), Request{Service: "external", URL: "http://x"})
		assert.False(t, resp.OK)
	})
	assert.Equal(t, tracing.StatusError, rec.Ended()[0].Status().Code)
}

func TestNilCaller(t *testing.T) {
	tracer, rec := tracetest.NewTracer()
	resp := New(nil, WithTracer(tracer)).Do(context.Background(), Request{Service: "external"})

	assert.False(t, resp.OK)
	assert.Equal(t, 1, rec.Len())
}

func TestRequestHeaderNotMutated(t *testing.T) {
	tracer, _ := tracetest.NewTracer()
	caller := &fakeCaller{status: 204}
	d := New(caller, WithTracer(tracer))

	header := http.Header{"Accept": []string{"application/json"}}
	d.Do(context.Background(), Request{Service: "external", Method: http.MethodPost, URL: "http://x", Header: header})

	assert.Empty(t, header.Get(tracing.TraceparentHeader))
	assert.Equal(t, "application/json", caller.gotHeader.Get("Accept"))
	assert.NotEmpty(t, caller.gotHeader.Get(tracing.TraceparentHeader))
	assert.Equal(t, http.MethodPost, caller.gotMethod)
}

func TestTraceContinuesAcrossHTTP(t *testing.T) {
	tracer, rec := tracetest.NewTracer()

	var serverParent tracing.SpanContext
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverParent = tracing.RemoteSpanContextFromContext(tracing.Extract(r.Context(), r.Header))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := New(CallerFunc(func(ctx context.Context, method, url string, header http.Header) (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return 0, nil, err
		}
		req.Header = header
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return resp.StatusCode, body, err
	}), WithTracer(tracer))

	resp := d.Do(context.Background(), Request{Service: "external", URL: srv.URL})
	require.True(t, resp.OK)

	client := rec.Ended()[0]
	assert.Equal(t, client.SpanContext().TraceID, serverParent.TraceID)
	assert.Equal(t, client.SpanContext().SpanID, serverParent.SpanID)
	assert.True(t, serverParent.Remote)
}

func TestSpanName(t *testing.T) {
	assert.Equal(t, "call_external_service", SpanName("external"))
	assert.Equal(t, "call_java_service", SpanName("java"))
}
