package sse

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fragmentReader returns its fragments one Read call at a time.
type fragmentReader struct {
	fragments []string
	err       error
}

func (f *fragmentReader) Read(p []byte) (int, error) {
	if len(f.fragments) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, io.EOF
	}
	n := copy(p, f.fragments[0])
	f.fragments[0] = f.fragments[0][n:]
	if f.fragments[0] == "" {
		f.fragments = f.fragments[1:]
	}
	return n, nil
}

func readAll(r *Reader) []Frame {
	var frames []Frame
	for {
		f, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if f == nil {
			return frames
		}
		frames = append(frames, *f)
	}
}

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with standard SSE frames", func() {
			It("parses a single frame", func() {
				r := NewReader(strings.NewReader("data: hello world\n\n"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("hello world"))
				Expect(f.Type).To(BeEmpty())
				Expect(f.ID).To(BeEmpty())
				Expect(f.Partial).To(BeFalse())

				f, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(BeNil())
			})

			It("parses multiple frames", func() {
				r := NewReader(strings.NewReader("data: first\n\ndata: second\n\n"))

				frames := readAll(r)
				Expect(frames).To(HaveLen(2))
				Expect(frames[0].Data).To(Equal("first"))
				Expect(frames[1].Data).To(Equal("second"))
			})

			It("parses event type", func() {
				r := NewReader(strings.NewReader("event: chunk\ndata: \"hi\"\n\n"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Type).To(Equal("chunk"))
				Expect(f.Data).To(Equal(`"hi"`))
			})

			It("parses event ID", func() {
				r := NewReader(strings.NewReader("id: 42\ndata: hello\n\n"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.ID).To(Equal("42"))
				Expect(f.Data).To(Equal("hello"))
			})

			It("joins multiple data lines with newline", func() {
				r := NewReader(strings.NewReader("data: line one\ndata: line two\ndata: line three\n\n"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("line one\nline two\nline three"))
			})

			It("accepts CRLF delimiters", func() {
				r := NewReader(strings.NewReader("event: end\r\ndata: {}\r\n\r\nevent: chunk\r\ndata: \"x\"\r\n\r\n"))

				frames := readAll(r)
				Expect(frames).To(HaveLen(2))
				Expect(frames[0].Type).To(Equal("end"))
				Expect(frames[0].Data).To(Equal("{}"))
				Expect(frames[1].Data).To(Equal(`"x"`))
			})
		})

		Context("with Anthropic-style SSE", func() {
			It("parses streaming events with event types", func() {
				input := "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\"}}\n\n" +
					"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Hello\"}}\n\n" +
					"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

				frames := readAll(NewReader(strings.NewReader(input)))
				Expect(frames).To(HaveLen(3))
				Expect(frames[0].Type).To(Equal("message_start"))
				Expect(frames[1].Type).To(Equal("content_block_delta"))
				Expect(frames[1].Data).To(ContainSubstring("Hello"))
				Expect(frames[2].Type).To(Equal("message_stop"))
			})
		})

		Context("with SSE comments", func() {
			It("ignores comment lines in parsed frames", func() {
				r := NewReader(strings.NewReader(": this is a comment\ndata: hello\n\n"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("hello"))
			})

			It("skips comment-only keep-alive blocks", func() {
				frames := readAll(NewReader(strings.NewReader(": keep-alive\n\ndata: hello\n\n")))
				Expect(frames).To(HaveLen(1))
				Expect(frames[0].Data).To(Equal("hello"))
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				f, err := NewReader(strings.NewReader("data:no-space\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("no-space"))
			})

			It("handles empty data field", func() {
				f, err := NewReader(strings.NewReader("data:\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(BeEmpty())
			})

			It("keeps empty data lines when joining", func() {
				f, ok := ParseFrame("event: chunk\ndata:\ndata: x")
				Expect(ok).To(BeTrue())
				Expect(f.Data).To(Equal("\nx"))

				f, ok = ParseFrame("data: x\ndata:\ndata:")
				Expect(ok).To(BeTrue())
				Expect(f.Data).To(Equal("x\n\n"))
			})

			DescribeTable("survives WriteFrame then ParseFrame",
				func(data string) {
					var b strings.Builder
					Expect(WriteFrame(&b, Frame{Type: "chunk", Data: data})).To(Succeed())

					raw := strings.TrimSuffix(b.String(), "\n\n")
					f, ok := ParseFrame(raw)
					Expect(ok).To(BeTrue())
					Expect(f.Type).To(Equal("chunk"))
					Expect(f.Data).To(Equal(data))
				},
				Entry("leading newline", "\nhello"),
				Entry("trailing newline", "hello\n"),
				Entry("only newlines", "\n\n"),
				Entry("blank line in the middle", "a\n\nb"),
			)

			It("keeps a second leading space as content", func() {
				f, err := NewReader(strings.NewReader("data:  indented\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal(" indented"))
			})
		})

		Context("with fragmented input", func() {
			It("reassembles frames split across reads", func() {
				src := &fragmentReader{fragments: []string{"eve", "nt: chunk\nda", "ta: \"a\"\n", "\nevent: end\ndata: {}\n\n"}}

				frames := readAll(NewReader(src))
				Expect(frames).To(HaveLen(2))
				Expect(frames[0]).To(Equal(Frame{Type: "chunk", Data: `"a"`}))
				Expect(frames[1]).To(Equal(Frame{Type: "end", Data: "{}"}))
			})

			It("reassembles frames delivered one byte at a time", func() {
				input := "event: chunk\ndata: \"héllo ✓\"\n\nevent: end\ndata: {}\n\n"

				frames := readAll(NewReader(iotest.OneByteReader(strings.NewReader(input))))
				Expect(frames).To(HaveLen(2))
				Expect(frames[0].Data).To(Equal(`"héllo ✓"`))
			})
		})

		Context("with read errors", func() {
			It("returns frames decoded before the failure, then the error", func() {
				boom := errors.New("connection reset")
				src := &fragmentReader{fragments: []string{"data: one\n\n"}, err: boom}
				r := NewReader(src)

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("one"))

				f, err = r.Next()
				Expect(err).To(MatchError(boom))
				Expect(f).To(BeNil())

				_, err = r.Next()
				Expect(err).To(MatchError(boom))
			})
		})

		Context("edge cases", func() {
			It("returns nil on empty input", func() {
				f, err := NewReader(strings.NewReader("")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(BeNil())
			})

			It("returns nil on input with only blank lines", func() {
				f, err := NewReader(strings.NewReader("\n\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(BeNil())
			})

			It("yields a partial frame when the stream ends without a trailing blank line", func() {
				r := NewReader(strings.NewReader("data: unterminated"))

				f, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("unterminated"))
				Expect(f.Partial).To(BeTrue())

				f, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(BeNil())
			})

			It("skips leading blank lines before first frame", func() {
				f, err := NewReader(strings.NewReader("\n\ndata: hello\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("hello"))
			})

			It("ignores unknown fields", func() {
				f, err := NewReader(strings.NewReader("retry: 3000\nfoo: bar\ndata: hello\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(Equal("hello"))
			})

			It("handles field with no colon", func() {
				f, err := NewReader(strings.NewReader("data\n\n")).Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Data).To(BeEmpty())
			})
		})
	})

	Describe("Frames", func() {
		It("yields frames lazily and stops at EOF", func() {
			var types []string
			for f, err := range Frames(strings.NewReader("event: a\ndata: 1\n\nevent: b\ndata: 2\n\n")) {
				Expect(err).NotTo(HaveOccurred())
				types = append(types, f.Type)
			}
			Expect(types).To(Equal([]string{"a", "b"}))
		})

		It("yields the read error as the last element", func() {
			boom := errors.New("boom")
			var errs []error
			for _, err := range Frames(&fragmentReader{fragments: []string{"data: 1\n\n"}, err: boom}) {
				errs = append(errs, err)
			}
			Expect(errs).To(HaveLen(2))
			Expect(errs[0]).NotTo(HaveOccurred())
			Expect(errs[1]).To(MatchError(boom))
		})
	})
})
