// Package logger builds the *slog.Logger instances used across tapestream.
// Every component takes a *slog.Logger; this package only decides how the
// records are rendered.
package logger

import (
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New creates a logger from the given options. Without options it writes
// Info and above as text to stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo, out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	switch o.format {
	case FormatPretty:
		return slog.New(charmlog.NewWithOptions(o.out, charmlog.Options{
			Level:           charmLevel(o.level),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			ReportCaller:    o.source,
			Prefix:          "tapestream",
		}))
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: o.level, AddSource: o.source}))
	default:
		return slog.New(slog.NewTextHandler(o.out, &slog.HandlerOptions{Level: o.level, AddSource: o.source}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func charmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l <= slog.LevelInfo:
		return charmlog.InfoLevel
	case l <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
