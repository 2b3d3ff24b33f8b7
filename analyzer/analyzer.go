// Package analyzer ties together domain sanitization, the report cache and
// the upstream dispatcher.
package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/domain"
	"github.com/use-agent/sitelens/models"
)

// Dispatcher fetches a raw report for a sanitized host.
type Dispatcher interface {
	Dispatch(ctx context.Context, host string) (*models.Report, error)
}

// Options tunes a single Analyze call.
type Options struct {
	// MaxAge allows a cached report younger than this. Zero disables caching.
	MaxAge time.Duration

	// Timeout overrides the configured default upstream deadline.
	Timeout time.Duration
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	dispatcher Dispatcher
	cache      *cache.Cache
	cfg        config.AnalyzerConfig
}

// New creates an Analyzer. cc may be nil to disable caching.
func New(d Dispatcher, cc *cache.Cache, cfg config.AnalyzerConfig) *Analyzer {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 120 * time.Second
	}
	return &Analyzer{dispatcher: d, cache: cc, cfg: cfg}
}

// Analyze runs the full pipeline for raw user input:
//
//  1. Sanitize the domain.
//  2. Serve from cache when opts.MaxAge allows.
//  3. Dispatch to the upstreams under a deadline.
//  4. Normalize and cache the report.
func (a *Analyzer) Analyze(ctx context.Context, raw string, opts Options) (*models.AnalyzeResult, error) {
	totalStart := time.Now()

	host, err := domain.Sanitize(raw)
	if err != nil {
		return nil, err
	}

	if a.cache != nil && opts.MaxAge > 0 {
		if report, hit := a.cache.Get(host, opts.MaxAge); hit {
			return &models.AnalyzeResult{
				Report:      report,
				CacheStatus: "hit",
				Timing:      models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
			}, nil
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.cfg.DefaultTimeout
	}
	if timeout > a.cfg.MaxTimeout {
		timeout = a.cfg.MaxTimeout
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	upstreamStart := time.Now()
	report, err := a.dispatcher.Dispatch(dispatchCtx, host)
	upstreamMs := time.Since(upstreamStart).Milliseconds()
	if err != nil {
		err = classify(dispatchCtx, err)
		slog.Warn("analysis failed", "domain", host, "error", err)
		return nil, err
	}

	report.Domain = host
	Normalize(report)

	result := &models.AnalyzeResult{
		Report: report,
		Timing: models.TimingInfo{
			TotalMs:    time.Since(totalStart).Milliseconds(),
			UpstreamMs: upstreamMs,
		},
	}

	if a.cache != nil && opts.MaxAge > 0 {
		a.cache.Set(host, report)
		result.CacheStatus = "miss"
	}

	slog.Info("analysis complete",
		"domain", host,
		"upstream", report.Upstream,
		"meta_tags", len(report.MetaTags),
		"links", len(report.Links),
		"images", len(report.Images),
		"upstream_ms", upstreamMs,
	)
	return result, nil
}

// classify makes sure every error leaving the analyzer is a SiteError and
// that an expired deadline is reported as a timeout.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var se *models.SiteError
		if !errors.As(err, &se) || se.Code != models.ErrCodeUpstreamTimeout {
			return models.NewSiteError(models.ErrCodeUpstreamTimeout, "analysis service timed out", err)
		}
		return err
	}
	var se *models.SiteError
	if errors.As(err, &se) {
		return err
	}
	return models.NewSiteError(models.ErrCodeUpstreamFailed, "analysis failed", err)
}
