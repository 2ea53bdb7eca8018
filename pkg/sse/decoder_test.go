package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decoder", func() {
	var d *Decoder

	BeforeEach(func() {
		d = NewDecoder()
	})

	It("returns no frames until a delimiter arrives", func() {
		Expect(d.Feed([]byte("event: chunk\ndata: \"a\"\n"))).To(BeEmpty())
		Expect(d.Buffered()).To(BeNumerically(">", 0))

		frames := d.Feed([]byte("\n"))
		Expect(frames).To(Equal([]Frame{{Type: "chunk", Data: `"a"`}}))
		Expect(d.Buffered()).To(BeZero())
	})

	It("returns every frame completed by one fragment in order", func() {
		frames := d.Feed([]byte("data: 1\n\ndata: 2\n\ndata: 3"))
		Expect(frames).To(HaveLen(2))
		Expect(frames[0].Data).To(Equal("1"))
		Expect(frames[1].Data).To(Equal("2"))

		frames = d.Feed([]byte("\n\n"))
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].Data).To(Equal("3"))
	})

	It("completes a delimiter split across fragments", func() {
		Expect(d.Feed([]byte("data: x\n"))).To(BeEmpty())
		Expect(d.Feed([]byte("\ndata: y\r\n\r"))).To(HaveLen(1))
		frames := d.Feed([]byte("\n"))
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].Data).To(Equal("y"))
	})

	It("holds a split multi-byte character until it is completed", func() {
		payload := []byte("data: ✓\n\n")
		// "✓" is three bytes; cut after its first byte.
		cut := len("data: ") + 1

		Expect(d.Feed(payload[:cut])).To(BeEmpty())
		frames := d.Feed(payload[cut:])
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].Data).To(Equal("✓"))
	})

	Describe("Flush", func() {
		It("returns the carry-over as a partial frame", func() {
			d.Feed([]byte("event: chunk\ndata: \"tail\""))

			f, ok := d.Flush()
			Expect(ok).To(BeTrue())
			Expect(f.Partial).To(BeTrue())
			Expect(f.Type).To(Equal("chunk"))
			Expect(f.Data).To(Equal(`"tail"`))
			Expect(d.Buffered()).To(BeZero())
		})

		It("returns nothing for an empty or whitespace carry-over", func() {
			_, ok := d.Flush()
			Expect(ok).To(BeFalse())

			d.Feed([]byte("\n"))
			_, ok = d.Flush()
			Expect(ok).To(BeFalse())
		})

		It("replaces an incomplete trailing character", func() {
			payload := []byte("data: ✓")
			d.Feed(payload[:len(payload)-1])

			f, ok := d.Flush()
			Expect(ok).To(BeTrue())
			Expect(f.Data).To(Equal("�"))
		})
	})
})
