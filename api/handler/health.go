package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/elemshot/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
func Health(s *Captures) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "idle"
		if s.Busy() {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(s.startTime).Round(time.Second).String(),
			Runs:    s.Runs(),
			Version: Version,
		})
	}
}
