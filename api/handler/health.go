package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Counter reports a number of live entries, e.g. the upstream domain memory.
type Counter interface {
	Len() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status is "degraded" when no upstream is configured.
func Health(upstreams int, jobs *archive.Jobs, memory Counter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if upstreams == 0 {
			status = "degraded"
		}

		resp := models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Upstreams: upstreams,
			Version:   Version,
		}
		if jobs != nil {
			resp.Jobs = jobs.Len()
		}
		if memory != nil {
			resp.Domains = memory.Len()
		}
		c.JSON(http.StatusOK, resp)
	}
}
