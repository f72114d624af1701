package http

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Span attribute keys set by the external service
const (
	ExternalScoreKey  = "external.score"
	ExternalStatusKey = "external.status"
)

// ExternalUserData is the enrichment payload served for a user
type ExternalUserData struct {
	ExternalID     int64  `json:"external_id"`
	ExternalScore  int    `json:"external_score"`
	ExternalStatus string `json:"external_status"`
	ProcessedAt    int64  `json:"processed_at"`
	ExternalRef    string `json:"external_ref"`
}

// ExternalHandlers serves the companion external service
type ExternalHandlers struct {
	name       string
	minLatency time.Duration
	maxLatency time.Duration
	metrics    *HandlerMetrics
	now        func() time.Time
	score      func() int
}

// NewExternalHandlers creates the external service handlers. Each user
// lookup waits a random duration in [minLatency, maxLatency].
func NewExternalHandlers(name string, minLatency, maxLatency time.Duration, metrics *HandlerMetrics) *ExternalHandlers {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &ExternalHandlers{
		name:       name,
		minLatency: minLatency,
		maxLatency: maxLatency,
		metrics:    metrics,
		now:        time.Now,
		score:      func() int { return rand.IntN(100) },
	}
}

// GetUserData returns simulated enrichment data for a user
func (h *ExternalHandlers) GetUserData(c *gin.Context) {
	ctx := c.Request.Context()
	span := tracing.SpanFromContext(ctx)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidUserID})
		return
	}
	span.SetAttribute(UserIDKey, id)

	done := h.metrics.TrackExternalOperation("get_user_data")
	if err := h.process(ctx); err != nil {
		done(err)
		span.RecordError(err)
		span.SetStatus(tracing.StatusError, "Processing interrupted")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing interrupted"})
		return
	}
	done(nil)

	data := ExternalUserData{
		ExternalID:     id,
		ExternalScore:  h.score(),
		ExternalStatus: "active",
		ProcessedAt:    h.now().UnixMilli(),
		ExternalRef:    uuid.NewString(),
	}
	span.SetAttributes(
		tracing.Int(ExternalScoreKey, data.ExternalScore),
		tracing.String(ExternalStatusKey, data.ExternalStatus),
	)
	c.JSON(http.StatusOK, data)
}

// process simulates work, returning early if the caller goes away
func (h *ExternalHandlers) process(ctx context.Context) error {
	delay := h.minLatency
	if spread := h.maxLatency - h.minLatency; spread > 0 {
		delay += rand.N(spread)
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports the external service as up
func (h *ExternalHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "service": h.name})
}
