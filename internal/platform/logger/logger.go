// Package logger builds the process-wide structured logger used by every
// pipeline component.
package logger

import (
	"log/slog"
	"os"
)

// Format selects the slog handler used by New.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New returns a slog.Logger writing to stdout. JSON is the production
// default; text is easier to read in local development and tests.
func New(format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
