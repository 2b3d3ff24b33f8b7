package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitelens/api"
)

var serveAddr string

// serveCmd runs the web page and JSON API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web page and JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address host:port (overrides SITELENS_HOST/SITELENS_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := loadConfig()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)

	addr := serveAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	slog.Info("sitelens starting",
		"addr", addr,
		"mode", cfg.Server.Mode,
		"upstreams", len(cfg.Upstream.Templates),
		"auth", cfg.Auth.Enabled && len(cfg.Auth.APIKeys) > 0,
	)

	// ── 3. Wire services ────────────────────────────────────────────
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	// ── 4. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Analyzer:  svc.analyzer,
		Renderer:  svc.renderer,
		Builder:   svc.builder,
		Jobs:      svc.jobs,
		Memory:    svc.memory,
		Upstreams: svc.dispatcher.Len(),
		StartTime: time.Now(),
	})

	// ── 5. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	// main cancels the command context on SIGINT/SIGTERM.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("sitelens stopped")
	return nil
}
