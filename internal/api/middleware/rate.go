package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitedKey marks request spans rejected by RateLimit
const RateLimitedKey = "http.rate_limited"

// RateLimitConfig is a per-client token bucket
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL evicts per-client limiters unused for this long
	IdleTTL time.Duration
}

// DefaultRateLimitConfig matches the config package defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTTL:           3 * time.Minute,
	}
}

// sweepEvery is the number of requests between idle-client sweeps
const sweepEvery = 1024

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type buckets struct {
	cfg RateLimitConfig

	mu   sync.Mutex
	byIP map[string]*bucket
	seen int
}

func (b *buckets) get(ip string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.byIP[ip]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(rate.Limit(b.cfg.RequestsPerSecond), b.cfg.Burst)}
		b.byIP[ip] = bk
	}
	bk.lastSeen = now

	if b.seen++; b.seen%sweepEvery == 0 {
		for k, v := range b.byIP {
			if now.Sub(v.lastSeen) > b.cfg.IdleTTL {
				delete(b.byIP, k)
			}
		}
	}
	return bk.limiter
}

// RateLimit rejects clients, keyed by IP, that exceed their bucket. The
// rejection is marked on the request span and answered with 429 and a
// Retry-After hint.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	b := &buckets{cfg: cfg, byIP: make(map[string]*bucket)}

	return func(c *gin.Context) {
		now := time.Now()
		if b.get(c.ClientIP(), now).AllowN(now, 1) {
			c.Next()
			return
		}

		tracing.SpanFromContext(c.Request.Context()).SetAttribute(RateLimitedKey, true)
		c.Header("Retry-After", retryAfter(cfg.RequestsPerSecond))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}

// retryAfter is the whole seconds until one token refills
func retryAfter(rps int) string {
	if rps <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(rps))))
}
