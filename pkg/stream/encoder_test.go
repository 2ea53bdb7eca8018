package stream_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/sse"
	"github.com/papercomputeco/tapestream/pkg/stream"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func decodeAll(b []byte) []sse.Frame {
	var frames []sse.Frame
	for f, err := range sse.Frames(bytes.NewReader(b)) {
		Expect(err).NotTo(HaveOccurred())
		frames = append(frames, f)
	}
	return frames
}

var _ = Describe("Encoder", func() {
	var (
		buf bytes.Buffer
		enc *stream.Encoder
	)

	BeforeEach(func() {
		buf.Reset()
		enc = stream.NewEncoder(&buf, logger.Nop())
	})

	It("writes each event as an event line, a data line and a blank line", func() {
		Expect(enc.ConversationID("conv-1")).To(Succeed())
		Expect(enc.Chunk("Hello")).To(Succeed())
		Expect(enc.End()).To(Succeed())

		Expect(buf.String()).To(Equal(
			"event: conversationId\ndata: conv-1\n\n" +
				"event: chunk\ndata: \"Hello\"\n\n" +
				"event: end\ndata: {}\n\n",
		))
	})

	It("escapes newlines and quotes in chunk content", func() {
		Expect(enc.Chunk("line1\n\n\"quoted\"")).To(Succeed())

		Expect(strings.Count(buf.String(), "\n\n")).To(Equal(1))
		frames := decodeAll(buf.Bytes())
		Expect(frames).To(HaveLen(1))
		Expect(stream.DecodeChunk(frames[0].Data)).To(Equal("line1\n\n\"quoted\""))
	})

	It("synthesizes the end frame on Close", func() {
		Expect(enc.Chunk("a")).To(Succeed())
		Expect(enc.Ended()).To(BeFalse())

		Expect(enc.Close()).To(Succeed())
		Expect(enc.Ended()).To(BeTrue())

		frames := decodeAll(buf.Bytes())
		Expect(frames).To(HaveLen(2))
		Expect(frames[1]).To(Equal(sse.Frame{Type: stream.EventEnd, Data: stream.EndPayload}))
	})

	It("writes exactly one end frame however often it is requested", func() {
		Expect(enc.End()).To(Succeed())
		Expect(enc.WriteFrame(sse.Frame{Type: stream.EventEnd, Data: "{}"})).To(Succeed())
		Expect(enc.Close()).To(Succeed())
		Expect(enc.Close()).To(Succeed())

		Expect(strings.Count(buf.String(), "event: end")).To(Equal(1))
	})

	It("rejects content after the end frame", func() {
		Expect(enc.End()).To(Succeed())
		Expect(enc.Chunk("late")).To(MatchError(stream.ErrStreamEnded))
		Expect(buf.String()).NotTo(ContainSubstring("late"))
	})

	It("does not forward upstream ids", func() {
		Expect(enc.WriteFrame(sse.Frame{Type: stream.EventChunk, Data: `"x"`, ID: "42"})).To(Succeed())
		Expect(buf.String()).NotTo(ContainSubstring("id:"))
	})

	It("emits a single end frame under concurrent closers", func() {
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = enc.Close()
			}()
		}
		wg.Wait()

		Expect(strings.Count(buf.String(), "event: end")).To(Equal(1))
	})

	It("counts the stream as ended even when the end write fails", func() {
		broken := stream.NewEncoder(failingWriter{}, logger.Nop())
		Expect(broken.Close()).To(HaveOccurred())
		Expect(broken.Ended()).To(BeTrue())
		Expect(broken.Close()).To(Succeed())
	})
})

var _ = Describe("chunk payloads", func() {
	DescribeTable("round trip",
		func(content string) {
			Expect(stream.DecodeChunk(stream.EncodeChunk(content))).To(Equal(content))
		},
		Entry("plain", "Hello"),
		Entry("empty", ""),
		Entry("newlines", "a\nb\r\n\n"),
		Entry("quotes and backslashes", `say "hi" \o/`),
		Entry("control characters", "tab\there\x00\x1b"),
		Entry("non-ASCII", "héllo wörld ✓ 你好 🎉"),
		Entry("looks like a frame", "event: end\ndata: {}\n\n"),
	)

	It("falls back to the raw payload when it is not a JSON string", func() {
		Expect(stream.DecodeChunk("not json")).To(Equal("not json"))
		Expect(stream.DecodeChunk(`{"content":"x"}`)).To(Equal(`{"content":"x"}`))
	})
})
