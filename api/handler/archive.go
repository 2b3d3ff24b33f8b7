package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/domain"
	"github.com/use-agent/sitelens/models"
)

// ArchiveImages returns a handler for POST /api/v1/images/archive.
//
// The archive is built in memory first so that a build where no image
// could be downloaded is reported as a 502 instead of a useless zip.
func ArchiveImages(an Analyzer, b *archive.Builder, defaultMaxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ArchiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewSiteError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}

		host, urls, err := resolveImages(c.Request.Context(), an, &req, defaultMaxAge)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		writeArchive(c, b, host, urls, func(err error) {
			respondError(c, err, models.TimingInfo{})
		})
	}
}

// PostArchive returns a handler for POST /api/v1/archives. It resolves the
// image list synchronously and builds the zip in the background.
func PostArchive(an Analyzer, jobs *archive.Jobs, defaultMaxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ArchiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewSiteError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}

		host, urls, err := resolveImages(c.Request.Context(), an, &req, defaultMaxAge)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		var hook *archive.Hook
		if req.WebhookURL != "" {
			hook = &archive.Hook{URL: req.WebhookURL, Secret: req.WebhookSecret}
		}
		job := jobs.Submit(host, urls, hook)

		c.JSON(http.StatusAccepted, models.ArchiveJobResponse{
			ID:     job.ID,
			Status: job.Status,
			Total:  job.Total,
		})
	}
}

// GetArchive returns a handler for GET /api/v1/archives/:id.
func GetArchive(jobs *archive.Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewSiteError(models.ErrCodeNotFound, "archive job not found", nil), models.TimingInfo{})
			return
		}

		resp := models.ArchiveStatusResponse{
			ID:       job.ID,
			Status:   job.Status,
			Total:    job.Total,
			Manifest: job.Manifest,
			Error:    job.Error,
		}
		if job.Status != archive.StatusProcessing {
			resp.FileName = job.FileName
			resp.DownloadURL = "/api/v1/archives/" + job.ID + "/download"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// DownloadArchive returns a handler for GET /api/v1/archives/:id/download.
func DownloadArchive(jobs *archive.Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, data, err := jobs.Download(c.Param("id"))
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}
		setAttachment(c, name, len(data))
		c.Data(http.StatusOK, "application/zip", data)
	}
}

// writeArchive builds the zip for urls and sends it, or calls onErr.
func writeArchive(c *gin.Context, b *archive.Builder, host string, urls []string, onErr func(error)) {
	var buf bytes.Buffer
	manifest, err := b.Build(c.Request.Context(), &buf, host, urls)
	if err != nil {
		slog.Warn("image archive failed", "domain", host, "error", err)
		onErr(err)
		return
	}

	c.Header("X-Images-Fetched", strconv.Itoa(manifest.Fetched))
	c.Header("X-Images-Failed", strconv.Itoa(manifest.Failed))
	setAttachment(c, archive.FileName(host), buf.Len())
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func setAttachment(c *gin.Context, name string, size int) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Length", strconv.Itoa(size))
}

// resolveImages turns an archive request into a host and a normalized list
// of image URLs. A domain is analyzed (cache allowed); an explicit list is
// resolved against base_url.
func resolveImages(ctx context.Context, an Analyzer, req *models.ArchiveRequest, defaultMaxAge time.Duration) (string, []string, error) {
	var host string
	var urls []string

	switch {
	case req.Domain != "":
		maxAge := defaultMaxAge
		if req.MaxAgeMs > 0 {
			maxAge = time.Duration(req.MaxAgeMs) * time.Millisecond
		}
		result, err := an.Analyze(ctx, req.Domain, analyzer.Options{MaxAge: maxAge})
		if err != nil {
			return "", nil, err
		}
		host = result.Report.Domain
		urls = result.Report.Images

	case len(req.Images) > 0:
		base := &url.URL{}
		if req.BaseURL != "" {
			u, err := url.Parse(req.BaseURL)
			if err != nil {
				return "", nil, models.NewSiteError(models.ErrCodeInvalidInput, "invalid base_url", err)
			}
			base = u
		}
		urls, _ = analyzer.NormalizeImages(req.Images, base)
		host = hostFor(base, urls)

	default:
		return "", nil, models.NewSiteError(models.ErrCodeInvalidInput, "domain or images is required", nil)
	}

	if len(urls) == 0 {
		return "", nil, models.NewSiteError(models.ErrCodeNoImages, "no downloadable images for "+host, nil)
	}
	return host, urls, nil
}

// hostFor picks the host that names an archive built from an explicit list.
func hostFor(base *url.URL, urls []string) string {
	candidates := []string{base.Host}
	if len(urls) > 0 {
		if u, err := url.Parse(urls[0]); err == nil {
			candidates = append(candidates, u.Host)
		}
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if host, err := domain.Sanitize(c); err == nil {
			return host
		}
	}
	return "site"
}
