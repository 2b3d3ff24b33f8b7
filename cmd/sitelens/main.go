package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/archive"
	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/fetcher"
	"github.com/use-agent/sitelens/render"
	"github.com/use-agent/sitelens/upstream"
	"github.com/use-agent/sitelens/webhook"
)

var logLevel string

// rootCmd is the sitelens entry point.
var rootCmd = &cobra.Command{
	Use:   "sitelens",
	Short: "Domain metadata lookup and bulk image archiving",
	Long: `sitelens forwards a domain to a remote analysis API and shows the
meta tags, links and images it reports. Every image can be downloaded
into a single zip archive.

Configuration is read from SITELENS_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides SITELENS_LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, analyzeCmd, imagesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

// services is the wired object graph shared by every command.
type services struct {
	dispatcher *upstream.Dispatcher
	memory     *upstream.DomainMemory
	cache      *cache.Cache
	analyzer   *analyzer.Analyzer
	builder    *archive.Builder
	jobs       *archive.Jobs
	renderer   *render.Renderer
}

func newServices(cfg *config.Config) (*services, error) {
	ups := make([]upstream.Upstream, 0, len(cfg.Upstream.Templates))
	for _, tmpl := range cfg.Upstream.Templates {
		u, err := upstream.NewHTTPUpstream(tmpl, nil)
		if err != nil {
			return nil, fmt.Errorf("upstream %q: %w", tmpl, err)
		}
		ups = append(ups, u)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no upstream configured (SITELENS_UPSTREAMS)")
	}

	rnd, err := render.New()
	if err != nil {
		return nil, err
	}

	memory := upstream.NewDomainMemory(cfg.Upstream.MemoryTTL)
	dispatcher := upstream.NewDispatcher(ups, cfg.Upstream.EscalationDelays, memory)
	cc := cache.New(cfg.Cache.MaxEntries)
	builder := archive.NewBuilder(fetcher.New(cfg.Fetcher), cfg.Archive)
	notifier := webhook.NewNotifier(&http.Client{
		Timeout:   10 * time.Second,
		Transport: fetcher.PublicTransport(cfg.Fetcher.AllowPrivate),
	})

	return &services{
		dispatcher: dispatcher,
		memory:     memory,
		cache:      cc,
		analyzer:   analyzer.New(dispatcher, cc, cfg.Analyzer),
		builder:    builder,
		jobs:       archive.NewJobs(builder, cfg.Archive.JobTTL, notifier),
		renderer:   rnd,
	}, nil
}

func (s *services) Close() {
	s.jobs.Stop()
	s.cache.Stop()
	s.memory.Stop()
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
