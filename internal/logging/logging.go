// Package logging provides structured logging setup for wanderlust.
package logging

import (
	"io"
	"log/slog"
)

// Setup installs the default slog logger writing to w and returns it.
// Dev mode uses human-readable text at debug level; otherwise JSON at info.
func Setup(w io.Writer, devMode bool) *slog.Logger {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	logger := slog.New(handler).With("app", "wanderlust")
	slog.SetDefault(logger)
	return logger
}
