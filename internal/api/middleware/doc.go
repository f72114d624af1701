// Package middleware holds the gin middleware both services put behind the
// request span.
//
// CORS lets browsers send traceparent, tracestate and X-Request-ID and read
// X-Request-ID and X-Trace-ID back. RateLimit keeps one token bucket per
// client IP and marks rejected request spans with http.rate_limited.
//
//	router.Use(lifecycle.Middleware(rt))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
