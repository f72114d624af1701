/*
Package lifecycle traces inbound requests from entry to response.

A RequestTracer keeps one root SERVER span per in-flight request, keyed by
request ID. Each request moves through PENDING, ACTIVE and COMPLETED, or
through FAILED when an exception is recorded before the response:

	ctx = rt.OnRequestStart(ctx, reqID, lifecycle.RequestInfo{Method: "GET", Path: "/api/users"})
	rt.OnRequestException(reqID, err) // optional, span stays open
	rt.OnRequestEnd(reqID, 500)       // http.status_code, status, end

Middleware wires this into gin:

	router := gin.New()
	router.Use(lifecycle.Middleware(rt))
	router.Use(gin.CustomRecovery(lifecycle.Recovery(logger)))

Handlers reach the request span through the request context with
tracing.SpanFromContext(c.Request.Context()).
*/
package lifecycle
