package lifecycle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// errHandlerExited is recorded when a handler stops the goroutine without
// returning, for example through runtime.Goexit.
var errHandlerExited = errors.New("handler exited without completing")

// Middleware drives rt from gin. It must be registered before any other
// middleware so the request span covers them.
//
// The client's X-Request-ID is honored or a new one generated, and a valid
// traceparent header continues the caller's trace. Both the request ID and
// the trace ID are echoed in the response headers.
//
// Clients may reuse an X-Request-ID across concurrent requests, so the
// lifecycle is keyed by a server-minted ID and the client's value is only
// recorded and echoed.
func Middleware(rt *RequestTracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := id.RequestIDFromHeader(c.GetHeader(tracing.RequestIDHeader))
		key := id.NewRequestID()

		ctx := tracing.Extract(c.Request.Context(), c.Request.Header)
		ctx = rt.OnRequestStart(ctx, key, RequestInfo{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			URL:       c.Request.URL.String(),
			Route:     c.FullPath(),
			UserAgent: c.Request.UserAgent(),
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(RequestIDKey, reqID)

		c.Header(tracing.RequestIDHeader, reqID.String())
		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			c.Header(tracing.TraceIDHeader, traceID)
		}

		completed := false
		defer func() {
			if completed {
				return
			}
			if r := recover(); r != nil {
				rt.OnRequestAbort(key, fmt.Errorf("panic: %v", r))
				panic(r)
			}
			rt.OnRequestAbort(key, errHandlerExited)
		}()

		c.Next()

		for _, e := range c.Errors {
			rt.OnRequestException(key, e.Err)
		}
		if err := ctx.Err(); err != nil {
			rt.OnRequestException(key, fmt.Errorf("request aborted by client: %w", err))
		}
		rt.OnRequestEnd(key, c.Writer.Status())
		completed = true
	}
}

// GetRequestID returns the request ID set by Middleware
func GetRequestID(c *gin.Context) id.RequestID {
	if v, ok := c.Get(RequestIDKey); ok {
		if reqID, ok := v.(id.RequestID); ok {
			return reqID
		}
	}
	return ""
}

// Recovery turns a handler panic into a request error and a 500 response.
// Install it with gin.CustomRecovery after Middleware so the panic is
// recorded on the request span.
func Recovery(logger *zap.Logger) gin.RecoveryFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", recovered)
		}
		_ = c.Error(err)

		logger.Error("handler panicked",
			append(tracing.LogFields(c.Request.Context()),
				zap.String("request_id", GetRequestID(c).String()),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)...)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
