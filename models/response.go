package models

import "time"

// MetaTag is a single <meta> name/content pair reported by the upstream.
type MetaTag struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Report is the normalized analysis of one domain.
type Report struct {
	// Domain is the sanitized host that was analyzed.
	Domain string `json:"domain"`

	// URL is the page the upstream actually analyzed.
	URL string `json:"url"`

	// ResponseTimeMs is the target page load time measured upstream.
	ResponseTimeMs int64 `json:"response_time_ms"`

	MetaTags []MetaTag `json:"meta_tags"`
	Links    []string  `json:"links"`
	Images   []string  `json:"images"`

	// SkippedImages counts image sources dropped during normalization
	// (data: URIs, unsupported schemes, unparsable URLs).
	SkippedImages int `json:"skipped_images,omitempty"`

	// Upstream names the analysis endpoint that produced the report.
	Upstream  string    `json:"upstream,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AnalyzeResponse is the response for POST /api/v1/analyze.
type AnalyzeResponse struct {
	// Success indicates whether the analysis completed without errors.
	Success bool `json:"success"`

	Report *Report `json:"report,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// AnalyzeResult is what the analyzer hands to the transport layers.
type AnalyzeResult struct {
	Report      *Report
	CacheStatus string
	Timing      TimingInfo
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// UpstreamMs is the time spent waiting on the analysis API.
	UpstreamMs int64 `json:"upstream_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"` // "healthy" or "degraded"
	Uptime    string `json:"uptime"`
	Upstreams int    `json:"upstreams"`
	Jobs      int    `json:"archive_jobs"`
	Domains   int    `json:"remembered_domains"`
	Version   string `json:"version"`
}
