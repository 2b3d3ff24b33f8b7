package archive

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/webhook"
)

// Job states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// jobTimeout bounds a single background build.
const jobTimeout = 10 * time.Minute

// Hook is an optional webhook notified when a job finishes.
type Hook struct {
	URL    string
	Secret string
}

// Job is a snapshot of an async archive build.
type Job struct {
	ID        string
	Domain    string
	Status    string
	Total     int
	FileName  string
	Manifest  *models.Manifest
	Error     *models.ErrorDetail
	CreatedAt time.Time

	data []byte
}

// Jobs runs archive builds in the background and keeps the finished zips
// in memory until they expire.
type Jobs struct {
	builder  *Builder
	notifier *webhook.Notifier
	ttl      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*Job
	done chan struct{}
}

// NewJobs creates a job store. Jobs older than ttl are removed by a
// background sweep; call Stop to end it. Webhooks go through n, or an
// unrestricted Notifier when n is nil.
func NewJobs(b *Builder, ttl time.Duration, n *webhook.Notifier) *Jobs {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if n == nil {
		n = webhook.NewNotifier(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Jobs{
		builder:  b,
		notifier: n,
		ttl:      ttl,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*Job),
		done:     make(chan struct{}),
	}
	go j.cleanupLoop()
	return j
}

// Submit registers a job for host's images and starts building it.
func (j *Jobs) Submit(host string, urls []string, hook *Hook) Job {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	job := &Job{
		ID:        id.String(),
		Domain:    host,
		Status:    StatusProcessing,
		Total:     len(urls),
		FileName:  FileName(host),
		CreatedAt: time.Now(),
	}

	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()

	go j.run(job, urls, hook)

	return j.snapshot(job)
}

// Get returns the current state of job id.
func (j *Jobs) Get(id string) (Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshotLocked(job), true
}

// Download returns the finished archive of job id. It fails with NOT_FOUND
// for unknown ids and INVALID_INPUT while the job is still running.
func (j *Jobs) Download(id string) (string, []byte, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return "", nil, models.NewSiteError(models.ErrCodeNotFound, "archive job not found", nil)
	}
	if job.Status == StatusProcessing {
		return "", nil, models.NewSiteError(models.ErrCodeInvalidInput, "archive job is still processing", nil)
	}
	if job.data == nil {
		return "", nil, models.NewSiteError(models.ErrCodeNotFound, "archive job produced no file", nil)
	}
	return job.FileName, job.data, nil
}

// Len returns the number of stored jobs.
func (j *Jobs) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.jobs)
}

// Stop cancels running builds and ends the cleanup loop.
func (j *Jobs) Stop() {
	j.cancel()
	close(j.done)
}

func (j *Jobs) run(job *Job, urls []string, hook *Hook) {
	ctx, cancel := context.WithTimeout(j.ctx, jobTimeout)
	defer cancel()

	var buf bytes.Buffer
	manifest, err := j.builder.Build(ctx, &buf, job.Domain, urls)

	j.mu.Lock()
	job.Manifest = manifest
	switch {
	case err != nil:
		job.Status = StatusFailed
		job.Error = toDetail(err)
		var se *models.SiteError
		// An all-failed build still yields a manifest-only zip.
		if errors.As(err, &se) && se.Code == models.ErrCodeNoImagesFetched {
			job.data = buf.Bytes()
		}
	case manifest.Failed > 0 || manifest.Skipped > 0:
		job.Status = StatusPartial
		job.data = buf.Bytes()
	default:
		job.Status = StatusCompleted
		job.data = buf.Bytes()
	}
	snap := j.snapshotLocked(job)
	j.mu.Unlock()

	slog.Info("archive job finished",
		"id", snap.ID,
		"domain", snap.Domain,
		"status", snap.Status,
		"total", snap.Total,
	)

	if hook == nil || hook.URL == "" {
		return
	}
	eventType := webhook.EventArchiveCompleted
	if snap.Status == StatusFailed {
		eventType = webhook.EventArchiveFailed
	}
	j.notifier.DeliverAsync(hook.URL, hook.Secret, &webhook.Event{
		Type:      eventType,
		JobID:     snap.ID,
		Timestamp: time.Now().Unix(),
		Data: models.ArchiveStatusResponse{
			ID:       snap.ID,
			Status:   snap.Status,
			Total:    snap.Total,
			FileName: snap.FileName,
			Manifest: snap.Manifest,
			Error:    snap.Error,
		},
	})
}

func (j *Jobs) snapshot(job *Job) Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked(job)
}

func (j *Jobs) snapshotLocked(job *Job) Job {
	s := *job
	s.data = nil
	return s
}

func (j *Jobs) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.expire(time.Now())
		case <-j.done:
			return
		}
	}
}

// expire removes jobs created before now minus the TTL.
func (j *Jobs) expire(now time.Time) int {
	cutoff := now.Add(-j.ttl)
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for id, job := range j.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(j.jobs, id)
			n++
		}
	}
	return n
}

func toDetail(err error) *models.ErrorDetail {
	var se *models.SiteError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeArchive, Message: err.Error()}
}
