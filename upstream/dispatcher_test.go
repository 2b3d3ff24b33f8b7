package upstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/sitelens/models"
)

type fakeUpstream struct {
	name  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeUpstream) Name() string { return f.name }

func (f *fakeUpstream) Analyze(ctx context.Context, host string) (*models.Report, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{Domain: host, URL: "https://" + host}, nil
}

func TestDispatcher_SingleUpstream(t *testing.T) {
	up := &fakeUpstream{name: "a"}
	d := NewDispatcher([]Upstream{up}, nil, nil)

	report, err := d.Dispatch(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Domain != "example.com" {
		t.Errorf("Domain = %q", report.Domain)
	}
}

func TestDispatcher_NoUpstreams(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	if _, err := d.Dispatch(context.Background(), "example.com"); err == nil {
		t.Fatal("expected error with no upstreams")
	}
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	failing := &fakeUpstream{name: "primary", err: errors.New("down")}
	backup := &fakeUpstream{name: "backup"}
	mem := NewDomainMemory(time.Hour)
	defer mem.Stop()

	d := NewDispatcher([]Upstream{failing, backup}, []time.Duration{0, 10 * time.Millisecond}, mem)

	report, err := d.Dispatch(context.Background(), "www.example.com")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Upstream != "backup" {
		t.Errorf("Upstream = %q, want backup", report.Upstream)
	}
	if got := mem.Get("example.com"); got != "backup" {
		t.Errorf("memory = %q, want backup", got)
	}
}

func TestDispatcher_FastestWinsAndLaterStagesSkipped(t *testing.T) {
	fast := &fakeUpstream{name: "fast"}
	late := &fakeUpstream{name: "late"}

	d := NewDispatcher([]Upstream{fast, late}, []time.Duration{0, 500 * time.Millisecond}, nil)

	report, err := d.Dispatch(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Upstream != "fast" {
		t.Errorf("Upstream = %q, want fast", report.Upstream)
	}
	if late.calls.Load() != 0 {
		t.Errorf("late upstream should not have started, calls = %d", late.calls.Load())
	}
}

func TestDispatcher_UsesMemoryFirst(t *testing.T) {
	a := &fakeUpstream{name: "a"}
	b := &fakeUpstream{name: "b"}
	mem := NewDomainMemory(time.Hour)
	defer mem.Stop()
	mem.Set("example.com", "b")

	d := NewDispatcher([]Upstream{a, b}, []time.Duration{0, 0}, mem)

	report, err := d.Dispatch(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Upstream != "b" {
		t.Errorf("Upstream = %q, want b", report.Upstream)
	}
	if a.calls.Load() != 0 {
		t.Errorf("a should not be called when memory points to b")
	}
}

func TestDispatcher_ForgetsFailedMemory(t *testing.T) {
	a := &fakeUpstream{name: "a"}
	b := &fakeUpstream{name: "b", err: errors.New("gone")}
	mem := NewDomainMemory(time.Hour)
	defer mem.Stop()
	mem.Set("example.com", "b")

	d := NewDispatcher([]Upstream{a, b}, []time.Duration{0, 0}, mem)

	report, err := d.Dispatch(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Upstream != "a" {
		t.Errorf("Upstream = %q, want a", report.Upstream)
	}
	if got := mem.Get("example.com"); got != "a" {
		t.Errorf("memory = %q, want a", got)
	}
}

func TestDispatcher_AllFail(t *testing.T) {
	wantErr := models.NewSiteError(models.ErrCodeUpstreamFailed, "nope", nil)
	a := &fakeUpstream{name: "a", err: wantErr}
	b := &fakeUpstream{name: "b", err: wantErr}

	d := NewDispatcher([]Upstream{a, b}, []time.Duration{0, 0}, nil)

	_, err := d.Dispatch(context.Background(), "example.com")
	var se *models.SiteError
	if !errors.As(err, &se) || se.Code != models.ErrCodeUpstreamFailed {
		t.Errorf("expected UPSTREAM_FAILED, got %v", err)
	}
}
