package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/models"
)

// respondError maps err to an HTTP status and writes a structured JSON
// error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	siteErr := asSiteError(err)
	c.JSON(mapErrorToStatus(siteErr), models.AnalyzeResponse{
		Success: false,
		Error:   siteErr.ToDetail(),
		Timing:  timing,
	})
}

// asSiteError wraps foreign errors as INTERNAL_ERROR.
func asSiteError(err error) *models.SiteError {
	var siteErr *models.SiteError
	if errors.As(err, &siteErr) {
		return siteErr
	}
	return models.NewSiteError(models.ErrCodeInternal, err.Error(), err)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.SiteError) int {
	switch e.Code {
	case models.ErrCodeInvalidDomain, models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeNoImages:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUpstreamFailed, models.ErrCodeUpstreamBadResponse, models.ErrCodeNoImagesFetched:
		return http.StatusBadGateway // 502
	case models.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
