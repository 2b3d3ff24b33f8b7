// Package fetcher downloads individual images for the archive builder.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const maxRedirects = 10

// Sentinel causes wrapped by the IMAGE_FETCH_FAILED SiteErrors.
var (
	ErrUnsupportedScheme = errors.New("fetcher: only http and https URLs are fetched")
	ErrStatus            = errors.New("fetcher: unexpected HTTP status")
	ErrTooLarge          = errors.New("fetcher: image exceeds size limit")
	ErrNotImage          = errors.New("fetcher: response is not an image")
	ErrTooManyRedirects  = errors.New("fetcher: too many redirects")
)

// Image is a downloaded image.
type Image struct {
	URL         string
	Data        []byte
	ContentType string // sniffed, e.g. "image/png"
	Extension   string // sniffed, e.g. ".png"
}

// Client downloads images. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	maxBytes  int64
	timeout   time.Duration
	userAgent string
}

// New creates a Client from cfg.
func New(cfg config.FetcherConfig) *Client {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = chromeUA
	}

	return &Client{
		http: &http.Client{
			Transport: newTransport(cfg.AllowPrivate),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return ErrUnsupportedScheme
				}
				return nil
			},
		},
		maxBytes:  cfg.MaxImageBytes,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Fetch downloads rawURL and verifies that the body is an image.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fetchError("unsupported image URL", ErrUnsupportedScheme)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchError("build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")
	// Hotlink protection commonly keys on the referring origin.
	req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fetchError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fetchError(fmt.Sprintf("HTTP %d", resp.StatusCode), ErrStatus)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fetchError("decode body", err)
	}
	if closer, ok := body.(io.Closer); ok {
		defer closer.Close()
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return nil, fetchError("read body", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fetchError(fmt.Sprintf("image larger than %d bytes", c.maxBytes), ErrTooLarge)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		slog.Debug("fetcher: non-image response",
			"url", rawURL,
			"detected", mt.String(),
			"content_type", resp.Header.Get("Content-Type"),
		)
		return nil, fetchError("response is "+mt.String(), ErrNotImage)
	}

	return &Image{
		URL:         rawURL,
		Data:        data,
		ContentType: mediaType(mt.String()),
		Extension:   mt.Extension(),
	}, nil
}

// decodeBody undoes Content-Encoding. The transport's own decompression is
// disabled so that brotli can be negotiated.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// mediaType strips parameters such as "; charset=utf-8".
func mediaType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func fetchError(msg string, err error) *models.SiteError {
	return models.NewSiteError(models.ErrCodeImageFetch, msg, err)
}
