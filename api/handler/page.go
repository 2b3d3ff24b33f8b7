package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/render"
)

// Page returns a handler for GET /. With ?domain= the analysis is run and
// rendered server-side; errors are shown inline with the mapped status.
func Page(an Analyzer, rnd *render.Renderer, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		data := render.PageData{Domain: strings.TrimSpace(c.Query("domain"))}
		status := http.StatusOK

		if data.Domain != "" {
			result, err := an.Analyze(c.Request.Context(), data.Domain, analyzer.Options{MaxAge: maxAge})
			if err != nil {
				siteErr := asSiteError(err)
				status = mapErrorToStatus(siteErr)
				data.Error = siteErr.ToDetail()
			} else {
				data.Report = result.Report
				data.Elapsed = time.Since(start)
			}
		}

		writePage(c, rnd, status, data)
	}
}

// PageImages returns a handler for GET /images.zip?domain=, the target of
// the page's download form.
func PageImages(an Analyzer, rnd *render.Renderer, b *archive.Builder, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := models.ArchiveRequest{Domain: strings.TrimSpace(c.Query("domain"))}
		renderErr := func(err error) {
			siteErr := asSiteError(err)
			writePage(c, rnd, mapErrorToStatus(siteErr), render.PageData{
				Domain: req.Domain,
				Error:  siteErr.ToDetail(),
			})
		}

		host, urls, err := resolveImages(c.Request.Context(), an, &req, maxAge)
		if err != nil {
			renderErr(err)
			return
		}
		writeArchive(c, b, host, urls, renderErr)
	}
}

// ReportMarkdown returns a handler for GET /report.md?domain=.
func ReportMarkdown(an Analyzer, rnd *render.Renderer, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Query("domain"))
		if raw == "" {
			c.String(http.StatusBadRequest, "domain query parameter is required\n")
			return
		}

		result, err := an.Analyze(c.Request.Context(), raw, analyzer.Options{MaxAge: maxAge})
		if err != nil {
			siteErr := asSiteError(err)
			c.String(mapErrorToStatus(siteErr), "%s: %s\n", siteErr.Code, siteErr.Message)
			return
		}

		md, err := rnd.Markdown(result.Report)
		if err != nil {
			slog.Error("markdown export failed", "domain", result.Report.Domain, "error", err)
			c.String(http.StatusInternalServerError, "%s: markdown export failed\n", models.ErrCodeInternal)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
	}
}

func writePage(c *gin.Context, rnd *render.Renderer, status int, data render.PageData) {
	var buf bytes.Buffer
	if err := rnd.Page(&buf, data); err != nil {
		slog.Error("page render failed", "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
