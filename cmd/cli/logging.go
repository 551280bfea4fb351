package main

import (
	"io"
	"log/slog"
)

// newLogger returns the diagnostics logger. Narration goes through ui; slog
// carries warnings by default and everything with -verbose.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
