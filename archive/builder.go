// Package archive bundles a report's images into a zip file.
//
// Archiving is best effort: every image is fetched independently, failures
// are recorded in manifest.json and never abort the rest of the archive.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/domain"
	"github.com/use-agent/sitelens/fetcher"
	"github.com/use-agent/sitelens/models"
)

// ManifestName is the name of the summary entry written last in every archive.
const ManifestName = "manifest.json"

const maxBaseNameLen = 60

// Fetcher downloads a single image.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Image, error)
}

// Builder writes image archives. It is safe for concurrent use.
type Builder struct {
	fetcher Fetcher
	cfg     config.ArchiveConfig
}

// NewBuilder creates a Builder.
func NewBuilder(f Fetcher, cfg config.ArchiveConfig) *Builder {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 6
	}
	if cfg.MaxTotalBytes <= 0 {
		cfg.MaxTotalBytes = 200 << 20
	}
	return &Builder{fetcher: f, cfg: cfg}
}

// FileName returns the download name for a domain's archive.
func FileName(host string) string {
	name := domain.Registrable(host)
	if name == "" {
		name = "site"
	}
	return name + "-images.zip"
}

// errBudget marks images that were never fetched because the bytes already
// downloaded reached the archive size budget.
var errBudget = errors.New("archive size budget exhausted")

type fetchResult struct {
	img *fetcher.Image
	err error
}

// Build fetches urls concurrently and writes a zip archive to w. Entries
// appear in input order, followed by manifest.json.
//
// When no image could be fetched the archive is still complete (it holds
// only the manifest) and Build returns a NO_IMAGES_FETCHED SiteError
// alongside the manifest. Errors writing to w are returned as ARCHIVE_FAILED.
func (b *Builder) Build(ctx context.Context, w io.Writer, host string, urls []string) (*models.Manifest, error) {
	manifest := &models.Manifest{
		Domain:    host,
		Total:     len(urls),
		Entries:   make([]models.ManifestEntry, 0, len(urls)),
		CreatedAt: time.Now().Unix(),
	}

	selected := urls
	if len(selected) > b.cfg.MaxImages {
		selected = selected[:b.cfg.MaxImages]
	}

	results := b.fetchAll(ctx, selected)

	zw := zip.NewWriter(w)
	seen := make(map[[32]byte]string)
	var written int64

	for i, rawURL := range selected {
		entry := models.ManifestEntry{URL: rawURL}
		res := results[i]

		if res.err != nil {
			if errors.Is(res.err, errBudget) {
				entry.Error = b.budgetMessage()
				manifest.Skipped++
			} else {
				entry.Error = res.err.Error()
				manifest.Failed++
			}
			manifest.Entries = append(manifest.Entries, entry)
			continue
		}

		sum := sha256.Sum256(res.img.Data)
		if prev, dup := seen[sum]; dup {
			entry.ContentType = res.img.ContentType
			entry.Bytes = len(res.img.Data)
			entry.DuplicateOf = prev
			manifest.Fetched++
			manifest.Entries = append(manifest.Entries, entry)
			continue
		}

		if written+int64(len(res.img.Data)) > b.cfg.MaxTotalBytes {
			entry.Error = b.budgetMessage()
			manifest.Skipped++
		} else {
			name := EntryName(i, rawURL, res.img.Extension)
			if err := writeEntry(zw, name, res.img.Data); err != nil {
				return manifest, models.NewSiteError(models.ErrCodeArchive, "failed to write zip entry", err)
			}
			seen[sum] = name
			entry.File = name
			entry.ContentType = res.img.ContentType
			entry.Bytes = len(res.img.Data)
			written += int64(len(res.img.Data))
			manifest.Fetched++
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	for _, rawURL := range urls[len(selected):] {
		manifest.Entries = append(manifest.Entries, models.ManifestEntry{
			URL:   rawURL,
			Error: fmt.Sprintf("archive limited to %d images", b.cfg.MaxImages),
		})
		manifest.Skipped++
	}
	manifest.Bytes = written

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return manifest, models.NewSiteError(models.ErrCodeArchive, "failed to encode manifest", err)
	}
	if err := writeEntry(zw, ManifestName, data); err != nil {
		return manifest, models.NewSiteError(models.ErrCodeArchive, "failed to write manifest", err)
	}
	if err := zw.Close(); err != nil {
		return manifest, models.NewSiteError(models.ErrCodeArchive, "failed to finish zip", err)
	}

	slog.Info("image archive built",
		"domain", host,
		"total", manifest.Total,
		"fetched", manifest.Fetched,
		"failed", manifest.Failed,
		"skipped", manifest.Skipped,
		"bytes", manifest.Bytes,
	)

	if manifest.Fetched == 0 && manifest.Total > 0 {
		return manifest, models.NewSiteError(models.ErrCodeNoImagesFetched,
			fmt.Sprintf("none of the %d images could be downloaded", manifest.Total), nil)
	}
	return manifest, nil
}

func (b *Builder) budgetMessage() string {
	return fmt.Sprintf("archive size budget of %d bytes exhausted", b.cfg.MaxTotalBytes)
}

// fetchAll downloads urls with bounded concurrency. A failed image never
// cancels the others, so the group functions always return nil.
//
// Once the bytes held reach MaxTotalBytes no further fetch is started and
// the remaining images get errBudget, so memory stays within the budget plus
// at most Concurrency in-flight images.
func (b *Builder) fetchAll(ctx context.Context, urls []string) []fetchResult {
	results := make([]fetchResult, len(urls))
	var done atomic.Int32
	var held atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = fetchResult{err: err}
				return nil
			}
			if held.Load() >= b.cfg.MaxTotalBytes {
				results[i] = fetchResult{err: errBudget}
				return nil
			}
			img, err := b.fetcher.Fetch(gctx, u)
			results[i] = fetchResult{img: img, err: err}
			if err != nil {
				slog.Debug("archive: image fetch failed", "url", u, "error", err)
			} else {
				held.Add(int64(len(img.Data)))
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("archive: fetch phase finished",
		"requested", len(urls), "attempted", done.Load(), "bytes", held.Load())
	return results
}

// EntryName builds "NNN-<base><ext>" for the image at index i. The base
// comes from the last URL path segment, restricted to [a-z0-9._-].
// The sniffed extension replaces a missing or inconsistent one.
func EntryName(i int, rawURL, ext string) string {
	base := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if seg := path.Base(u.Path); seg != "." && seg != "/" && seg != "" {
			if unescaped, err := url.PathUnescape(seg); err == nil {
				seg = unescaped
			}
			base = seg
		}
	}

	curExt := strings.ToLower(path.Ext(base))
	stem := sanitizeName(strings.TrimSuffix(base, path.Ext(base)))
	if !validExt(curExt) {
		curExt = ""
	}
	if ext != "" && !sameExt(curExt, ext) {
		curExt = ext
	}
	if stem == "" {
		stem = "image"
	}
	if len(stem) > maxBaseNameLen {
		stem = stem[:maxBaseNameLen]
	}
	return fmt.Sprintf("%03d-%s%s", i+1, stem, curExt)
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// sameExt treats common aliases as equal.
func sameExt(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	aliases := map[string]string{".jpeg": ".jpg", ".jpe": ".jpg", ".tif": ".tiff", ".svgz": ".svg"}
	if v, ok := aliases[a]; ok {
		a = v
	}
	if v, ok := aliases[b]; ok {
		b = v
	}
	return a == b
}

func sanitizeName(s string) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-.")
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	method := zip.Deflate
	if alreadyCompressed(name) {
		method = zip.Store
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

// alreadyCompressed reports formats that deflate cannot shrink.
func alreadyCompressed(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".heic":
		return true
	}
	return false
}
