package monitoring

import (
	"strconv"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit no registered route
const unmatchedRoute = "unmatched"

// HTTPRequest is one finished request as seen by Middleware
type HTTPRequest struct {
	Method       string
	Route        string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
	// TraceID, when set, is attached to the latency observation as an
	// exemplar.
	TraceID string
}

// Middleware records request metrics per route template. It must run after
// the request span is started so latency samples link to their trace.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		req := HTTPRequest{
			Method:       c.Request.Method,
			Route:        c.FullPath(),
			Status:       c.Writer.Status(),
			Duration:     time.Since(start),
			RequestSize:  max(c.Request.ContentLength, 0),
			ResponseSize: int64(max(c.Writer.Size(), 0)),
		}
		if req.Route == "" {
			req.Route = unmatchedRoute
		}
		if sc := tracing.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			req.TraceID = sc.TraceID.String()
		}
		metrics.RecordHTTPRequest(req)
	}
}

func statusLabel(code int) string { return strconv.Itoa(code) }

// Timer measures one downstream call
type Timer struct {
	start   time.Time
	metrics *Metrics
	service string
	method  string
}

// NewTimer starts timing a call. A nil collector makes Stop a no-op.
func NewTimer(metrics *Metrics, service, method string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, service: service, method: method}
}

// Stop records the call with the given outcome label
func (t *Timer) Stop(status string) {
	if t.metrics != nil {
		t.metrics.RecordServiceCall(t.service, t.method, status, time.Since(t.start))
	}
}
