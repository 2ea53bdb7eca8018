package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
	"github.com/papercomputeco/tapestream/pkg/eventstream/nop"
)

var _ eventstream.Publisher = (*nop.Publisher)(nil)

var _ = Describe("Publisher", func() {
	It("rejects nil events without counting them", func() {
		p := nop.NewPublisher()
		Expect(p.PublishRecord(context.Background(), nil)).To(MatchError(eventstream.ErrNilRecordEvent))
		Expect(p.Dropped()).To(BeZero())
	})

	It("discards and counts every other event", func() {
		p := nop.NewPublisher()
		for range 3 {
			Expect(p.PublishRecord(context.Background(), &eventstream.RecordPersistedEvent{})).To(Succeed())
		}
		Expect(p.Dropped()).To(Equal(int64(3)))
		Expect(p.Close()).To(Succeed())
	})
})
