package models

// AnalyzeRequest is the payload for POST /api/v1/analyze.
type AnalyzeRequest struct {
	// Domain is the user-supplied domain, e.g. "example.com". Required.
	// Schemes, paths and ports are stripped during sanitization.
	Domain string `json:"domain" binding:"required"`

	// MaxAgeMs allows serving a cached report younger than this many
	// milliseconds. Zero disables the cache for this request.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`

	// Timeout is the upstream deadline in seconds. Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
}

// Defaults applies default values to unset fields.
func (r *AnalyzeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// ArchiveRequest is the payload for POST /api/v1/images/archive and
// POST /api/v1/archives.
//
// Either Domain or Images must be set. With Domain the report is fetched
// (or served from cache) and its images are archived.
type ArchiveRequest struct {
	Domain string `json:"domain,omitempty"`

	// Images is an explicit list of image URLs. Relative entries are
	// resolved against BaseURL.
	Images  []string `json:"images,omitempty" binding:"omitempty,max=1000"`
	BaseURL string   `json:"base_url,omitempty" binding:"omitempty,url"`

	// MaxAgeMs is forwarded to the analyze step when Domain is set.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives archive.completed / archive.failed events.
	// Only used by the async endpoint.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
