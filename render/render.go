// Package render turns analysis reports into HTML pages, Markdown and
// plain text.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/use-agent/sitelens/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultDownloadPath is where the page's download form submits.
const DefaultDownloadPath = "/images.zip"

// PageData feeds the "page" template.
type PageData struct {
	Domain       string
	Report       *models.Report
	Error        *models.ErrorDetail
	DownloadPath string
	Elapsed      time.Duration
}

// Renderer is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	conv *converter.Converter
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, conv: newMarkdownConverter()}, nil
}

// Page writes the full HTML page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if data.DownloadPath == "" {
		data.DownloadPath = DefaultDownloadPath
	}
	if data.Elapsed > 0 {
		data.Elapsed = data.Elapsed.Round(time.Millisecond)
	}
	return r.tmpl.ExecuteTemplate(w, "page", data)
}

// ReportHTML renders only the report fragment.
func (r *Renderer) ReportHTML(rep *models.Report) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.ExecuteTemplate(&sb, "report", rep); err != nil {
		return "", fmt.Errorf("render: report fragment: %w", err)
	}
	return sb.String(), nil
}

// Markdown renders the report fragment and converts it to Markdown.
func (r *Renderer) Markdown(rep *models.Report) (string, error) {
	html, err := r.ReportHTML(rep)
	if err != nil {
		return "", err
	}
	md, err := toMarkdown(r.conv, html, rep.URL)
	if err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return md, nil
}

// Text formats a report for terminals.
func Text(rep *models.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Result For: %s\n", rep.URL)
	fmt.Fprintf(&sb, "Load time: %dms\n", rep.ResponseTimeMs)

	sb.WriteString("\nMeta tags\n")
	for _, m := range rep.MetaTags {
		fmt.Fprintf(&sb, "  %s:%s\n", m.Name, m.Content)
	}

	sb.WriteString("\nLinks\n")
	for _, l := range rep.Links {
		fmt.Fprintf(&sb, "  %s\n", l)
	}

	sb.WriteString("\nimg\n")
	for _, img := range rep.Images {
		fmt.Fprintf(&sb, "  %s\n", img)
	}
	if rep.SkippedImages > 0 {
		fmt.Fprintf(&sb, "  (%d skipped)\n", rep.SkippedImages)
	}
	return sb.String()
}
