package middleware

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSConfig allows the given origins, or any origin when none are
// configured. Browsers may send trace context and read back the
// correlation headers set by the lifecycle middleware.
func DefaultCORSConfig(origins ...string) cors.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AddAllowHeaders(
		"Accept",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		tracing.TraceparentHeader,
		tracing.TracestateHeader,
		tracing.RequestIDHeader,
	)
	cfg.AddExposeHeaders(tracing.RequestIDHeader, tracing.TraceIDHeader)
	cfg.AllowCredentials = true
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

// CORS wraps gin-contrib/cors
func CORS(cfg cors.Config) gin.HandlerFunc {
	return cors.New(cfg)
}
