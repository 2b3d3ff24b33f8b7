package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/sitelens/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		Domain:         "example.com",
		URL:            "https://example.com/",
		ResponseTimeMs: 120,
		MetaTags: []models.MetaTag{
			{Name: "description", Content: "Example site"},
			{Name: "og:title", Content: "Example <b>"},
		},
		Links:  []string{"https://example.com/about", "mailto:hi@example.com"},
		Images: []string{"https://example.com/logo.png"},
	}
}

func mustRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestPage_Report(t *testing.T) {
	r := mustRenderer(t)
	var buf bytes.Buffer
	err := r.Page(&buf, PageData{Domain: "example.com", Report: sampleReport(), Elapsed: 42 * time.Millisecond})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	doc := parse(t, buf.String())

	if got := doc.Find("input[name=domain]").First().AttrOr("value", ""); got != "example.com" {
		t.Errorf("search value = %q", got)
	}
	if got := doc.Find("input[name=domain]").First().AttrOr("placeholder", ""); got != "example.com" {
		t.Errorf("placeholder = %q", got)
	}
	if got := doc.Find(".report h2").Text(); got != "Result For: https://example.com/" {
		t.Errorf("heading = %q", got)
	}
	if got := doc.Find(".load-time").Text(); got != "Load time: 120ms" {
		t.Errorf("load time = %q", got)
	}

	var metas []string
	doc.Find(".meta-tags li").Each(func(_ int, s *goquery.Selection) {
		metas = append(metas, s.Text())
	})
	if strings.Join(metas, "|") != "description:Example site|og:title:Example <b>" {
		t.Errorf("meta tags = %q", metas)
	}
	if doc.Find(".meta-tags b").Length() != 0 {
		t.Error("meta content was not escaped")
	}

	if n := doc.Find(".links a").Length(); n != 2 {
		t.Errorf("links = %d, want 2", n)
	}
	if src := doc.Find(".images img").AttrOr("src", ""); src != "https://example.com/logo.png" {
		t.Errorf("img src = %q", src)
	}

	form := doc.Find("form.download")
	if form.AttrOr("action", "") != DefaultDownloadPath {
		t.Errorf("download action = %q", form.AttrOr("action", ""))
	}
	if _, disabled := form.Find("button").Attr("disabled"); disabled {
		t.Error("download button should be enabled when images exist")
	}
	if href := doc.Find(".export a").AttrOr("href", ""); href != "/report.md?domain=example.com" {
		t.Errorf("export href = %q", href)
	}
	if doc.Find(".error").Length() != 0 {
		t.Error("unexpected error block")
	}
}

func TestPage_Error(t *testing.T) {
	r := mustRenderer(t)
	var buf bytes.Buffer
	err := r.Page(&buf, PageData{
		Domain: "localhost",
		Error:  &models.ErrorDetail{Code: models.ErrCodeInvalidDomain, Message: "not a registrable domain"},
	})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	doc := parse(t, buf.String())

	if got := doc.Find(".error").Text(); !strings.Contains(got, "not a registrable domain") {
		t.Errorf("error block = %q", got)
	}
	if doc.Find(".report").Length() != 0 || doc.Find("form.download").Length() != 0 {
		t.Error("results should not render with an error")
	}
}

func TestPage_NoImagesDisablesDownload(t *testing.T) {
	r := mustRenderer(t)
	rep := sampleReport()
	rep.Images = nil

	var buf bytes.Buffer
	if err := r.Page(&buf, PageData{Domain: "example.com", Report: rep}); err != nil {
		t.Fatalf("Page: %v", err)
	}
	doc := parse(t, buf.String())
	if _, disabled := doc.Find("form.download button").Attr("disabled"); !disabled {
		t.Error("download button should be disabled without images")
	}
}

func TestMarkdown(t *testing.T) {
	md, err := mustRenderer(t).Markdown(sampleReport())
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	for _, want := range []string{
		"Result For:",
		"Load time: 120ms",
		"description:Example site",
		"(https://example.com/about)",
		"![](https://example.com/logo.png)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "<section") {
		t.Errorf("markdown still contains HTML:\n%s", md)
	}
}

func TestText(t *testing.T) {
	rep := sampleReport()
	rep.SkippedImages = 2
	got := Text(rep)
	for _, want := range []string{
		"Result For: https://example.com/\n",
		"Load time: 120ms\n",
		"  description:Example site\n",
		"  mailto:hi@example.com\n",
		"  https://example.com/logo.png\n",
		"(2 skipped)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("text missing %q:\n%s", want, got)
		}
	}
}
