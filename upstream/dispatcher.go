package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/sitelens/domain"
	"github.com/use-agent/sitelens/models"
)

// Dispatcher coordinates several analysis upstreams with staged escalation.
// It asks the first upstream immediately and progressively brings in the
// others if earlier ones fail or are slow.
type Dispatcher struct {
	upstreams        []Upstream
	escalationDelays []time.Duration
	memory           *DomainMemory
}

// NewDispatcher creates a Dispatcher with the given upstreams and escalation delays.
// upstreams[i] starts after escalationDelays[i] from the race beginning.
// Missing delays default to zero. memory may be nil.
func NewDispatcher(upstreams []Upstream, escalationDelays []time.Duration, memory *DomainMemory) *Dispatcher {
	delays := make([]time.Duration, len(upstreams))
	copy(delays, escalationDelays)
	return &Dispatcher{
		upstreams:        upstreams,
		escalationDelays: delays,
		memory:           memory,
	}
}

// Len returns the number of configured upstreams.
func (d *Dispatcher) Len() int { return len(d.upstreams) }

// Dispatch runs the staged race for host and returns the first successful
// report. If all upstreams fail, it returns the last error.
func (d *Dispatcher) Dispatch(ctx context.Context, host string) (*models.Report, error) {
	if len(d.upstreams) == 0 {
		return nil, models.NewSiteError(models.ErrCodeInternal, "no analysis upstream configured", nil)
	}
	if len(d.upstreams) == 1 {
		return d.upstreams[0].Analyze(ctx, host)
	}

	key := domain.Registrable(host)

	// Check domain memory for a previously successful upstream.
	if d.memory != nil {
		if remembered := d.memory.Get(key); remembered != "" {
			for _, up := range d.upstreams {
				if up.Name() != remembered {
					continue
				}
				slog.Debug("domain memory hit", "domain", key, "upstream", remembered)
				report, err := up.Analyze(ctx, host)
				if err == nil {
					return report, nil
				}
				if ctx.Err() != nil {
					return nil, err
				}
				// Memory entry failed; forget it and fall through to full race.
				slog.Info("remembered upstream failed, running full race",
					"domain", key, "upstream", remembered, "error", err)
				d.memory.Delete(key)
				break
			}
		}
	}

	return d.race(ctx, host, key)
}

// race runs all upstreams with staged delays and returns the first success.
func (d *Dispatcher) race(ctx context.Context, host, key string) (*models.Report, error) {
	type raceResult struct {
		report *models.Report
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.upstreams))
	var wg sync.WaitGroup

	for i, up := range d.upstreams {
		delay := d.escalationDelays[i]
		wg.Add(1)
		go func(u Upstream, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}

			// Another upstream may already have won.
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("upstream starting", "upstream", u.Name(), "domain", host)
			report, err := u.Analyze(raceCtx, host)
			if err != nil {
				slog.Debug("upstream failed", "upstream", u.Name(), "domain", host, "error", err)
			} else if report.Upstream == "" {
				report.Upstream = u.Name()
			}
			results <- raceResult{report: report, err: err}
		}(up, delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		raceCancel()
		slog.Info("upstream won race", "upstream", rr.report.Upstream, "domain", host)
		if d.memory != nil {
			d.memory.Set(key, rr.report.Upstream)
		}
		return rr.report, nil
	}

	if lastErr == nil {
		lastErr = models.NewSiteError(models.ErrCodeUpstreamFailed,
			fmt.Sprintf("all analysis upstreams failed for %s", host), ctx.Err())
	}
	return nil, lastErr
}
