package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/UserTrace/backend/internal/domain/users"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Span attribute keys set by the users handlers
const (
	UserIDKey     = "user.id"
	UserNameKey   = "user.name"
	UsersCountKey = "users.count"
)

// Error messages returned to clients
const (
	msgUserNotFound  = "User not found"
	msgInvalidUserID = "Invalid user id"
	msgInternal      = "Internal server error"
)

// MaxBodySize bounds request bodies accepted by the users API
const MaxBodySize = 64 * 1024

// Handlers contains the users API handlers
type Handlers struct {
	users   *users.Service
	metrics *HandlerMetrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(svc *users.Service, metrics *HandlerMetrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{users: svc, metrics: metrics, logger: logger}
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required,email,max=255"`
}

// ListUsers returns all users
func (h *Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	done := h.metrics.TrackUsersOperation("list")

	list, err := h.users.List(ctx)
	done(err)
	if err != nil {
		h.internalError(c, err)
		return
	}

	tracing.SpanFromContext(ctx).SetAttribute(UsersCountKey, len(list))
	c.JSON(http.StatusOK, list)
}

// GetUser returns one user with its external data
func (h *Handlers) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	span := tracing.SpanFromContext(ctx)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidUserID})
		return
	}
	span.SetAttribute(UserIDKey, id)

	done := h.metrics.TrackUsersOperation("get")
	profile, err := h.users.Get(ctx, id)
	done(err)
	if errors.Is(err, users.ErrNotFound) {
		span.SetStatus(tracing.StatusError, msgUserNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// CreateUser stores a new user
func (h *Handlers) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	done := h.metrics.TrackUsersOperation("create")
	user, err := h.users.Create(ctx, req.Name, req.Email)
	done(err)
	switch {
	case errors.Is(err, users.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.internalError(c, err)
		return
	}

	tracing.SpanFromContext(ctx).SetAttributes(
		tracing.Int64(UserIDKey, user.ID),
		tracing.String(UserNameKey, user.Name),
	)
	c.JSON(http.StatusCreated, user)
}

// internalError records err on the request so the lifecycle middleware
// attaches it to the server span
func (h *Handlers) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	logging.FromContext(h.logger, c.Request.Context()).Error("request failed",
		zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}
