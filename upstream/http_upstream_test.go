package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/sitelens/models"
)

func TestNewHTTPUpstream_Template(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{"default", "https://web2-server.vercel.app/https:/{domain}", false},
		{"query placeholder", "http://localhost:3000/analyze?d={domain}", false},
		{"missing placeholder", "https://api.test/analyze", true},
		{"not http", "ftp://api.test/{domain}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPUpstream(tt.template, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewHTTPUpstream(%q) error = %v, wantErr %v", tt.template, err, tt.wantErr)
			}
		})
	}
}

func TestHTTPUpstream_EndpointKeepsSingleSlash(t *testing.T) {
	up, err := NewHTTPUpstream("https://web2-server.vercel.app/https:/{domain}", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := up.Endpoint("example.com"), "https://web2-server.vercel.app/https:/example.com"; got != want {
		t.Errorf("Endpoint = %q, want %q", got, want)
	}
	if up.Name() != "web2-server.vercel.app" {
		t.Errorf("Name = %q", up.Name())
	}
}

func TestHTTPUpstream_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/https:/example.com" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"url": "https://example.com",
			"responseTime": 123.7,
			"metaTags": [{"name": "description", "content": "An example"}],
			"links": ["https://example.com/about"],
			"imgs": ["/logo.png"]
		}`))
	}))
	defer srv.Close()

	up, err := NewHTTPUpstream(srv.URL+"/https:/{domain}", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	report, err := up.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.URL != "https://example.com" || report.ResponseTimeMs != 123 {
		t.Errorf("unexpected report header: %+v", report)
	}
	if len(report.MetaTags) != 1 || report.MetaTags[0].Content != "An example" {
		t.Errorf("MetaTags = %+v", report.MetaTags)
	}
	if len(report.Images) != 1 || report.Images[0] != "/logo.png" {
		t.Errorf("Images = %v", report.Images)
	}
	if report.Domain != "example.com" || report.Upstream != up.Name() {
		t.Errorf("Domain/Upstream = %q/%q", report.Domain, report.Upstream)
	}
}

func TestHTTPUpstream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantCode: models.ErrCodeUpstreamFailed,
		},
		{
			name: "html instead of json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			wantCode: models.ErrCodeUpstreamBadResponse,
		},
		{
			name: "bad responseTime",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"url":"x","responseTime":"fast"}`))
			},
			wantCode: models.ErrCodeUpstreamBadResponse,
		},
		{
			name: "oversized body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"url":"` + strings.Repeat("a", maxReportBytes) + `"}`))
			},
			wantCode: models.ErrCodeUpstreamBadResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			up, err := NewHTTPUpstream(srv.URL+"/{domain}", srv.Client())
			if err != nil {
				t.Fatal(err)
			}
			_, err = up.Analyze(context.Background(), "example.com")
			var se *models.SiteError
			if !errors.As(err, &se) {
				t.Fatalf("expected SiteError, got %v", err)
			}
			if se.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", se.Code, tt.wantCode)
			}
		})
	}
}

func TestHTTPUpstream_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	up, err := NewHTTPUpstream(srv.URL+"/{domain}", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = up.Analyze(ctx, "example.com")
	var se *models.SiteError
	if !errors.As(err, &se) || se.Code != models.ErrCodeUpstreamTimeout {
		t.Errorf("expected UPSTREAM_TIMEOUT, got %v", err)
	}
}
