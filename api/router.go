package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/api/handler"
	"github.com/use-agent/sitelens/api/middleware"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/render"
)

// Deps are the services the router exposes.
type Deps struct {
	Analyzer  handler.Analyzer
	Renderer  *render.Renderer
	Builder   *archive.Builder
	Jobs      *archive.Jobs
	Memory    handler.Counter
	Upstreams int
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Page:    RateLimit
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	maxAge := cfg.Cache.DefaultMaxAge

	// Page routes: rate limit only.
	page := r.Group("")
	page.Use(middleware.RateLimit(cfg.RateLimit))
	page.GET("/", handler.Page(d.Analyzer, d.Renderer, maxAge))
	page.GET("/report.md", handler.ReportMarkdown(d.Analyzer, d.Renderer, maxAge))
	page.GET(render.DefaultDownloadPath, handler.PageImages(d.Analyzer, d.Renderer, d.Builder, maxAge))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(d.Upstreams, d.Jobs, d.Memory, d.StartTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Analyze
	protected.POST("/analyze", handler.Analyze(d.Analyzer))

	// Images
	protected.POST("/images/archive", handler.ArchiveImages(d.Analyzer, d.Builder, maxAge))

	// Async archives
	protected.POST("/archives", handler.PostArchive(d.Analyzer, d.Jobs, maxAge))
	protected.GET("/archives/:id", handler.GetArchive(d.Jobs))
	protected.GET("/archives/:id/download", handler.DownloadArchive(d.Jobs))

	return r
}
