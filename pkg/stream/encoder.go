package stream

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/papercomputeco/tapestream/pkg/sse"
)

// ErrStreamEnded is returned when a non-terminal frame is written after the
// end frame.
var ErrStreamEnded = errors.New("stream already ended")

// Encoder serializes outbound frames onto w. At most one end frame is ever
// written, and Close writes one if none was. An Encoder is safe for
// concurrent use.
type Encoder struct {
	mu     sync.Mutex
	w      io.Writer
	ended  bool
	logger *slog.Logger
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, logger *slog.Logger) *Encoder {
	return &Encoder{w: w, logger: logger}
}

// ConversationID writes a conversationId frame.
func (e *Encoder) ConversationID(id string) error {
	return e.WriteFrame(sse.Frame{Type: EventConversationID, Data: id})
}

// Chunk writes content as a chunk frame.
func (e *Encoder) Chunk(content string) error {
	return e.WriteFrame(sse.Frame{Type: EventChunk, Data: EncodeChunk(content)})
}

// End writes the end frame unless one was already written.
func (e *Encoder) End() error {
	return e.WriteFrame(sse.Frame{Type: EventEnd, Data: EndPayload})
}

// WriteFrame writes f. End frames after the first are skipped; any other
// frame after the end frame fails with ErrStreamEnded.
func (e *Encoder) WriteFrame(f sse.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if f.Type == EventEnd {
		if e.ended {
			e.logger.Warn("skipping duplicate end frame")
			return nil
		}
		// Marked before the write: a failed write still ends the stream.
		e.ended = true
		return sse.WriteFrame(e.w, sse.Frame{Type: EventEnd, Data: EndPayload})
	}

	if e.ended {
		return ErrStreamEnded
	}

	// Partial and ID are upstream details and never reach the client.
	return sse.WriteFrame(e.w, sse.Frame{Type: f.Type, Data: f.Data})
}

// Close ends the stream, synthesizing the end frame if none was written.
// It does not close the underlying writer.
func (e *Encoder) Close() error {
	return e.End()
}

// Ended reports whether the end frame has been written.
func (e *Encoder) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}
