package http

import (
	"net/http"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// ServiceInfo identifies the running service in health responses
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

// HealthHandler reports liveness and a metrics summary
func HealthHandler(info ServiceInfo, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":      "healthy",
			"service":     info.Name,
			"version":     info.Version,
			"environment": info.Environment,
		}
		if metrics != nil {
			body["metrics"] = metrics.Snapshot()
		}
		c.JSON(http.StatusOK, body)
	}
}
