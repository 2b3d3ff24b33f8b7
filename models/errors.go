package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidDomain       = "INVALID_DOMAIN"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUpstreamFailed      = "UPSTREAM_FAILED"
	ErrCodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamBadResponse = "UPSTREAM_BAD_RESPONSE"
	ErrCodeImageFetch          = "IMAGE_FETCH_FAILED"
	ErrCodeNoImages            = "NO_IMAGES"
	ErrCodeNoImagesFetched     = "NO_IMAGES_FETCHED"
	ErrCodeArchive             = "ARCHIVE_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SiteError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type SiteError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *SiteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SiteError) Unwrap() error {
	return e.Err
}

// NewSiteError creates a new SiteError.
func NewSiteError(code, message string, err error) *SiteError {
	return &SiteError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *SiteError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
