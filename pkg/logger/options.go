package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler a logger writes through.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota

	// FormatPretty is the colorized charmbracelet/log handler used on
	// interactive terminals.
	FormatPretty

	// FormatJSON writes one JSON object per record, for log files and
	// collectors.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat maps "text", "pretty" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Option configures a logger built by New.
type Option func(*options)

type options struct {
	level  slog.Level
	format Format
	source bool
	out    io.Writer
}

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(o *options) {
		if debug {
			o.level = slog.LevelDebug
		}
	}
}

// WithLevel sets the minimum level explicitly.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

func WithFormat(format Format) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithWriter sets the destination. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithSource adds the caller's file:line to every record.
func WithSource(source bool) Option {
	return func(o *options) {
		o.source = source
	}
}
