package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/sitelens/models"
)

// maxReportBytes caps the upstream response body.
const maxReportBytes = 5 << 20

const userAgent = "sitelens/0.1 (+https://github.com/use-agent/sitelens)"

// wireReport is the JSON shape returned by the analysis service.
type wireReport struct {
	URL          string        `json:"url"`
	ResponseTime json.Number   `json:"responseTime"`
	MetaTags     []wireMetaTag `json:"metaTags"`
	Links        []string      `json:"links"`
	Imgs         []string      `json:"imgs"`
}

type wireMetaTag struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// HTTPUpstream calls a remote analysis API over HTTP. The target URL is
// built from a template in which "{domain}" is replaced by the host.
type HTTPUpstream struct {
	name     string
	template string
	client   *http.Client
}

// NewHTTPUpstream validates template and returns an upstream using client
// (a client with a 60s timeout when nil).
func NewHTTPUpstream(template string, client *http.Client) (*HTTPUpstream, error) {
	if !strings.Contains(template, "{domain}") {
		return nil, fmt.Errorf("upstream: template %q has no {domain} placeholder", template)
	}
	u, err := url.Parse(strings.ReplaceAll(template, "{domain}", "example.com"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("upstream: template %q is not an http(s) URL", template)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPUpstream{
		name:     u.Host,
		template: template,
		client:   client,
	}, nil
}

func (u *HTTPUpstream) Name() string { return u.name }

// Endpoint returns the request URL for host.
func (u *HTTPUpstream) Endpoint(host string) string {
	return strings.ReplaceAll(u.template, "{domain}", host)
}

func (u *HTTPUpstream) Analyze(ctx context.Context, host string) (*models.Report, error) {
	endpoint := u.Endpoint(host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewSiteError(models.ErrCodeInternal, "failed to build upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, models.NewSiteError(models.ErrCodeUpstreamTimeout,
				fmt.Sprintf("analysis service %s timed out", u.name), err)
		}
		return nil, models.NewSiteError(models.ErrCodeUpstreamFailed,
			fmt.Sprintf("analysis service %s unreachable", u.name), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes+1))
	if err != nil {
		return nil, models.NewSiteError(models.ErrCodeUpstreamFailed,
			fmt.Sprintf("analysis service %s: read body", u.name), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.NewSiteError(models.ErrCodeUpstreamFailed,
			fmt.Sprintf("analysis service %s returned HTTP %d", u.name, resp.StatusCode), nil)
	}
	if len(body) > maxReportBytes {
		return nil, models.NewSiteError(models.ErrCodeUpstreamBadResponse,
			fmt.Sprintf("analysis service %s response exceeds %d bytes", u.name, maxReportBytes), nil)
	}

	report, err := decodeReport(body)
	if err != nil {
		return nil, models.NewSiteError(models.ErrCodeUpstreamBadResponse,
			fmt.Sprintf("analysis service %s returned malformed JSON", u.name), err)
	}
	report.Domain = host
	report.Upstream = u.name
	report.FetchedAt = time.Now().UTC()
	return report, nil
}

// decodeReport maps the wire shape onto models.Report. responseTime may be
// an integer or a float; fractions are truncated.
func decodeReport(body []byte) (*models.Report, error) {
	var w wireReport
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	var ms int64
	if w.ResponseTime != "" {
		f, err := w.ResponseTime.Float64()
		if err != nil {
			return nil, fmt.Errorf("responseTime: %w", err)
		}
		ms = int64(f)
	}

	tags := make([]models.MetaTag, 0, len(w.MetaTags))
	for _, t := range w.MetaTags {
		tags = append(tags, models.MetaTag{Name: t.Name, Content: t.Content})
	}

	return &models.Report{
		URL:            w.URL,
		ResponseTimeMs: ms,
		MetaTags:       tags,
		Links:          w.Links,
		Images:         w.Imgs,
	}, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
