package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/elemshot/api"
	"github.com/use-agent/elemshot/api/handler"
	"github.com/use-agent/elemshot/capture"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the capture HTTP API",
		Long: `Serve exposes POST /api/v1/capture and GET /api/v1/health.

Captures run one at a time; concurrent requests wait for the running one.
Output directories in requests are resolved under ELEMSHOT_OUTPUT_ROOT.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides ELEMSHOT_PORT)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := loadConfig(cmd)
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	// ── 2. Initialise structured logging ────────────────────────────
	if !cmd.Flags().Changed("verbose") && os.Getenv("ELEMSHOT_LOG_FORMAT") == "" {
		cfg.Log.Format = "json"
	}
	initLogger(cfg.Log, os.Stdout)
	slog.Info("elemshot starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"outputRoot", cfg.Server.OutputRoot,
	)

	// ── 3. Capture service ──────────────────────────────────────────
	capturer := capture.New(newLauncher(cfg.Browser), capture.OptionsFromConfig(cfg.Capture))
	captures := handler.NewCaptures(capturer, cfg.Server.OutputRoot)

	// ── 4. Router + server ──────────────────────────────────────────
	router := api.NewRouter(captures, cfg)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// A capture in flight may need its full readiness and element waits.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("elemshot stopped")
	return nil
}
