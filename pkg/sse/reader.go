package sse

import (
	"errors"
	"io"
	"iter"
)

const readSize = 32 * 1024

// Reader yields frames from a source io.Reader as they complete. Reads are
// fed through a Decoder so frames split across reads are reassembled.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │  fragments
// ▼
// ┌──────────────────┐
// │     Decoder      │
// └──────────────────┘
// │  complete frames
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │
// └──────────────────┘
type Reader struct {
	src     io.Reader
	decoder *Decoder
	buf     []byte

	pending []Frame
	err     error
	done    bool
}

// NewReader returns a Reader that parses frames from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:     src,
		decoder: NewDecoder(),
		buf:     make([]byte, readSize),
	}
}

// Next returns the next complete frame. It blocks until a frame is available.
// When the source is exhausted, any carry-over is returned once as a partial
// frame, then Next returns nil, nil.
//
// A read error other than io.EOF is returned after the frames decoded before
// it, and on every call thereafter.
func (r *Reader) Next() (*Frame, error) {
	for {
		if len(r.pending) > 0 {
			f := r.pending[0]
			r.pending = r.pending[1:]
			return &f, nil
		}

		if r.err != nil {
			return nil, r.err
		}

		if r.done {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.decoder.Feed(r.buf[:n])...)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.done = true
			if f, ok := r.decoder.Flush(); ok {
				r.pending = append(r.pending, f)
			}
		default:
			r.err = err
		}
	}
}

// Frames returns a lazy, single-use sequence of the frames in src. The
// sequence ends at EOF; a read error is yielded once as the final element.
func Frames(src io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		r := NewReader(src)
		for {
			f, err := r.Next()
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if f == nil {
				return
			}
			if !yield(*f, nil) {
				return
			}
		}
	}
}
