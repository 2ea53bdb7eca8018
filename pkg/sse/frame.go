// Package sse provides the minimal SSE (Server-Sent Events) framing used by
// tapestream: an incremental Decoder that reassembles frames from arbitrary
// network fragments, a lazy frame Reader over an io.Reader, and WriteFrame for
// serializing frames back onto the wire.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"strings"
)

// Frame represents a single SSE frame, delimited by a blank line in the byte
// stream.
type Frame struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this frame,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string

	// Partial is set on the best-effort frame recovered from carry-over when
	// the input ended without a trailing delimiter.
	Partial bool
}

// ParseFrame parses the raw text of one frame (without its delimiter).
// It returns false when the block carries no fields, e.g. keep-alive comments
// or stray blank lines.
func ParseFrame(raw string) (Frame, bool) {
	var (
		f        Frame
		hasField bool
		sawData  bool
	)

	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			// every data line after the first starts a new line, even when
			// the earlier ones were empty
			if sawData {
				f.Data += "\n"
			}
			f.Data += value
			sawData = true
		case "event":
			f.Type = value
		case "id":
			f.ID = value
		default:
			// "retry" and unknown fields are ignored per the SSE spec.
			continue
		}
		hasField = true
	}

	return f, hasField
}

// splitField splits "field:value", stripping one optional space after the
// colon. A line without a colon is a field name with an empty value.
func splitField(line string) (field, value string) {
	before, after, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}
	return before, strings.TrimPrefix(after, " ")
}
