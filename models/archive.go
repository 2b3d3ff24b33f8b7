package models

// ManifestEntry records the outcome for one source image.
type ManifestEntry struct {
	URL         string `json:"url"`
	File        string `json:"file,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Manifest summarizes an image archive. It is stored as manifest.json
// inside the zip and returned by the job status endpoint.
type Manifest struct {
	Domain    string          `json:"domain,omitempty"`
	Total     int             `json:"total"`
	Fetched   int             `json:"fetched"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Bytes     int64           `json:"bytes"`
	Entries   []ManifestEntry `json:"entries"`
	CreatedAt int64           `json:"created_at"` // unix timestamp
}

// ArchiveJobResponse is the immediate response for POST /api/v1/archives.
type ArchiveJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// ArchiveStatusResponse is the response for GET /api/v1/archives/:id.
type ArchiveStatusResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"` // "processing", "completed", "partial", "failed"
	Total       int          `json:"total"`
	FileName    string       `json:"file_name,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
	Manifest    *Manifest    `json:"manifest,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}
