// Package logger sets up structured logging for apcontrol with quiet handling.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the log handler
type Options struct {
	Verbose bool // Enable debug output
	Quiet   bool // Only warnings and errors
	NoColor bool
}

// New returns a tint-backed logger writing to w
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Quiet:
		level = slog.LevelWarn
	case opts.Verbose:
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	}))
}

// Setup installs the logger as the slog default and returns it.
// Color is disabled when NO_COLOR is set or w is not stderr.
func Setup(w io.Writer, opts Options) *slog.Logger {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || w != os.Stderr {
		opts.NoColor = true
	}

	l := New(w, opts)
	slog.SetDefault(l)
	return l
}

// Error logs through the default logger. It is written at any level.
func Error(msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"err", err}, args...)...)
}
