package sse

import (
	"io"
	"strings"
)

// WriteFrame serializes f onto w as an "event:" line (when Type is set), one
// "data:" line per line of Data, and the blank-line delimiter. The frame is
// written with a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	var b strings.Builder

	if f.ID != "" {
		b.WriteString("id: ")
		b.WriteString(f.ID)
		b.WriteByte('\n')
	}

	if f.Type != "" {
		b.WriteString("event: ")
		b.WriteString(f.Type)
		b.WriteByte('\n')
	}

	for line := range strings.SplitSeq(f.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
