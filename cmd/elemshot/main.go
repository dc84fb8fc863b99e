// Package main provides the elemshot CLI.
//
// elemshot loads a page in a headless browser and saves one PNG per DOM
// element matched by each CSS selector.
//
// Usage:
//
//	elemshot capture https://example.com ".card" "#hero" --out shots
//	elemshot capture --file job.yaml
//	elemshot serve
package main

import (
	"io"
	"log/slog"

	"github.com/use-agent/elemshot/config"
)

func main() {
	Execute()
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
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
