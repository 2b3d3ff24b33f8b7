package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/fetcher"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/render"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, raw string, _ analyzer.Options) (*models.AnalyzeResult, error) {
	return &models.AnalyzeResult{Report: &models.Report{
		Domain:   raw,
		URL:      "https://" + raw + "/",
		MetaTags: []models.MetaTag{},
		Links:    []string{},
		Images:   []string{},
	}}, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) (*fetcher.Image, error) {
	return nil, fetcher.ErrStatus
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	rnd, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	builder := archive.NewBuilder(stubFetcher{}, config.ArchiveConfig{})
	jobs := archive.NewJobs(builder, time.Hour, nil)
	t.Cleanup(jobs.Stop)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Cache:     config.CacheConfig{DefaultMaxAge: time.Minute},
	}
	return NewRouter(cfg, Deps{
		Analyzer:  stubAnalyzer{},
		Renderer:  rnd,
		Builder:   builder,
		Jobs:      jobs,
		Upstreams: 1,
		StartTime: time.Now(),
	})
}

func TestRouter_AuthScopes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		key    string
		status int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", "", "", http.StatusOK},
		{"page is public", http.MethodGet, "/", "", "", http.StatusOK},
		{"markdown is public", http.MethodGet, "/report.md?domain=example.com", "", "", http.StatusOK},
		{"analyze needs key", http.MethodPost, "/api/v1/analyze", `{"domain":"example.com"}`, "", http.StatusUnauthorized},
		{"analyze with key", http.MethodPost, "/api/v1/analyze", `{"domain":"example.com"}`, "secret", http.StatusOK},
		{"archive status needs key", http.MethodGet, "/api/v1/archives/x", "", "", http.StatusUnauthorized},
		{"unknown archive", http.MethodGet, "/api/v1/archives/x", "", "secret", http.StatusNotFound},
		{"no images", http.MethodPost, "/api/v1/images/archive", `{"domain":"example.com"}`, "secret", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.status, w.Body.String())
			}
		})
	}
}
