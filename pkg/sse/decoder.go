package sse

import (
	"bytes"
	"strings"
)

var (
	delimLF   = []byte("\n\n")
	delimCRLF = []byte("\r\n\r\n")
)

// Decoder reassembles frames from a sequence of byte fragments of arbitrary
// size. Fragment boundaries may fall anywhere: inside a field, inside the
// blank-line delimiter or inside a multi-byte UTF-8 sequence.
//
// A Decoder owns its carry-over buffer for the lifetime of one stream and is
// not safe for concurrent use.
type Decoder struct {
	buf []byte

	// scanned is the offset in buf before which no delimiter can start.
	scanned int
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the carry-over and returns every frame completed by it,
// in arrival order. Blocks that carry no fields (keep-alives) are skipped.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)

	var frames []Frame
	for {
		idx, size := d.nextDelimiter()
		if idx < 0 {
			break
		}

		// Delimiters are ASCII so the cut never splits a UTF-8 sequence.
		raw := string(d.buf[:idx])
		d.buf = d.buf[idx+size:]
		d.scanned = 0

		if f, ok := ParseFrame(raw); ok {
			frames = append(frames, f)
		}
	}

	// A delimiter straddling the next fragment can begin at most
	// len(delimCRLF)-1 bytes before the current end.
	d.scanned = max(0, len(d.buf)-len(delimCRLF)+1)

	return frames
}

// Flush returns the non-empty carry-over as a best-effort partial frame and
// resets the decoder. Incomplete UTF-8 sequences left at the tail are replaced.
func (d *Decoder) Flush() (Frame, bool) {
	raw := strings.ToValidUTF8(string(d.buf), "�")
	d.buf = nil
	d.scanned = 0

	if strings.TrimSpace(raw) == "" {
		return Frame{}, false
	}

	f, ok := ParseFrame(raw)
	if !ok {
		return Frame{}, false
	}
	f.Partial = true
	return f, true
}

// Buffered returns the number of carry-over bytes awaiting a delimiter.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// nextDelimiter finds the earliest "\n\n" or "\r\n\r\n" in the carry-over.
func (d *Decoder) nextDelimiter() (int, int) {
	search := d.buf[d.scanned:]

	lf := bytes.Index(search, delimLF)
	crlf := bytes.Index(search, delimCRLF)

	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return d.scanned + crlf, len(delimCRLF)
	default:
		return d.scanned + lf, len(delimLF)
	}
}
