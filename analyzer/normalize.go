package analyzer

import (
	"net/url"
	"strings"

	"github.com/use-agent/sitelens/models"
)

// Normalize cleans an upstream report in place: meta tags are trimmed, link
// and image URLs are resolved against the analyzed page and deduplicated.
func Normalize(r *models.Report) {
	base := baseURL(r)
	if r.URL == "" {
		r.URL = base.String()
	}
	if r.ResponseTimeMs < 0 {
		r.ResponseTimeMs = 0
	}

	r.MetaTags = normalizeMetaTags(r.MetaTags)
	r.Links = NormalizeLinks(r.Links, base)

	var skipped int
	r.Images, skipped = NormalizeImages(r.Images, base)
	r.SkippedImages += skipped
}

// baseURL returns the analyzed page URL, falling back to https://<domain>/.
func baseURL(r *models.Report) *url.URL {
	if r.URL != "" {
		if u, err := url.Parse(strings.TrimSpace(r.URL)); err == nil && u.Host != "" {
			if u.Scheme == "" {
				u.Scheme = "https"
			}
			return u
		}
	}
	return &url.URL{Scheme: "https", Host: r.Domain, Path: "/"}
}

func normalizeMetaTags(tags []models.MetaTag) []models.MetaTag {
	out := make([]models.MetaTag, 0, len(tags))
	for _, t := range tags {
		t.Name = strings.TrimSpace(t.Name)
		t.Content = strings.TrimSpace(t.Content)
		if t.Name == "" && t.Content == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// NormalizeLinks resolves relative links against base, drops empty and
// javascript: links, keeps mailto: and tel: verbatim, and deduplicates
// preserving first-seen order.
func NormalizeLinks(links []string, base *url.URL) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))

	for _, raw := range links {
		href := strings.TrimSpace(raw)
		if href == "" || href == "#" {
			continue
		}

		resolved, err := base.Parse(href)
		if err != nil {
			continue
		}

		var abs string
		switch resolved.Scheme {
		case "http", "https":
			resolved.Fragment = ""
			abs = resolved.String()
		case "mailto", "tel":
			abs = href
		default:
			// javascript:, data:, about: and friends are not navigable.
			continue
		}

		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// NormalizeImages resolves image sources to absolute http(s) URLs and
// deduplicates them. It returns the kept URLs and how many were dropped for
// reasons other than duplication.
func NormalizeImages(srcs []string, base *url.URL) ([]string, int) {
	out := make([]string, 0, len(srcs))
	seen := make(map[string]struct{}, len(srcs))
	skipped := 0

	for _, raw := range srcs {
		src := strings.TrimSpace(raw)
		if src == "" {
			skipped++
			continue
		}

		resolved, err := base.Parse(src)
		if err != nil || resolved.Host == "" {
			skipped++
			continue
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			skipped++
			continue
		}
		resolved.Fragment = ""

		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out, skipped
}
