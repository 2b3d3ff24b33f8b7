package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/models"
)

// Analyzer produces normalized reports for raw user input.
type Analyzer interface {
	Analyze(ctx context.Context, raw string, opts analyzer.Options) (*models.AnalyzeResult, error)
}

// Analyze returns a handler for POST /api/v1/analyze.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Analyzer.Analyze (sanitize, cache, upstream, normalize).
//  3. Fill timing and respond.
func Analyze(an Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		result, err := an.Analyze(c.Request.Context(), req.Domain, analyzer.Options{
			MaxAge:  time.Duration(req.MaxAgeMs) * time.Millisecond,
			Timeout: time.Duration(req.Timeout) * time.Second,
		})
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		timing := result.Timing
		timing.TotalMs = time.Since(totalStart).Milliseconds()

		c.JSON(http.StatusOK, models.AnalyzeResponse{
			Success:     true,
			Report:      result.Report,
			Timing:      timing,
			CacheStatus: result.CacheStatus,
		})
	}
}
