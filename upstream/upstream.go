// Package upstream consumes the remote analysis API. Several endpoints can
// be configured; the Dispatcher escalates through them in stages.
package upstream

import (
	"context"

	"github.com/use-agent/sitelens/models"
)

// Upstream is the interface every analysis endpoint must implement.
type Upstream interface {
	// Name returns the upstream identifier, usually its host.
	Name() string

	// Analyze asks the remote service to analyze host and returns the
	// decoded, not yet normalized, report.
	Analyze(ctx context.Context, host string) (*models.Report, error)
}
