// Package logging wires log/slog to a human-readable console handler by
// default and a JSON handler for machine consumption, mirroring the
// teacher's two log levels (lifecycle events at Info, per-call detail at
// Debug) documented by bassosimone-nop's SLogger.
package logging

import (
	"io"
	"log/slog"
	"os"

	console "github.com/phsym/console-slog"
)

// Format selects the rendered log shape.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New.
type Options struct {
	Format Format
	Level  slog.Level
	Writer io.Writer
}

// New builds a *slog.Logger for opts, defaulting to a colorized console
// handler on os.Stderr at Info level.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	switch opts.Format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level}))
	default:
		return slog.New(console.NewHandler(w, &console.HandlerOptions{Level: opts.Level}))
	}
}

// Discard returns a logger that drops everything, used as the zero-value
// default before a caller's flags have been parsed (the library-convention
// "no-op until configured" pattern bassosimone-nop's DefaultSLogger names).
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
