package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
	"github.com/papercomputeco/tapestream/pkg/storage"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, "records", nil)
	})

	It("requires a broker", func() {
		_, err := NewPublisher(Config{Brokers: []string{" ", ""}})
		Expect(err).To(MatchError(ContainSubstring("at least one broker")))
	})

	It("defaults the topic", func() {
		pub, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.topic).To(Equal(DefaultTopic))
		Expect(pub.Close()).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(p.PublishRecord(context.Background(), nil)).To(MatchError(eventstream.ErrNilRecordEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("keys messages by conversation and carries the JSON payload", func() {
		event := eventstream.NewMessageEvent(&storage.Message{
			ConversationID: "conv-1",
			Role:           storage.RoleAssistant,
			Content:        "hi",
		}, time.Now())

		Expect(p.PublishRecord(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))

		msg := w.msgs[0]
		Expect(string(msg.Key)).To(Equal("conv-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{
			Key:   "event_type",
			Value: []byte(eventstream.EventTypeMessagePersisted),
		}))

		var got eventstream.RecordPersistedEvent
		Expect(json.Unmarshal(msg.Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal(event.EventID))
		Expect(got.Message.Content).To(Equal("hi"))
	})

	It("wraps writer failures", func() {
		w.err = errors.New("leader not available")
		event := eventstream.NewInteractionEvent(&storage.Interaction{ConversationID: "c"}, time.Now())
		err := p.PublishRecord(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("records")))
		Expect(errors.Is(err, w.err)).To(BeTrue())
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})

	Context("against a broker", func() {
		var brokers []string

		BeforeEach(func() {
			raw := os.Getenv("TAPESTREAM_TEST_KAFKA_BROKERS")
			if raw == "" {
				Skip("TAPESTREAM_TEST_KAFKA_BROKERS not set")
			}
			brokers = strings.Split(raw, ",")
		})

		It("publishes a record event", func() {
			pub, err := NewPublisher(Config{Brokers: brokers, Topic: "tapestream-test"})
			Expect(err).NotTo(HaveOccurred())
			defer pub.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			event := eventstream.NewMessageEvent(&storage.Message{ConversationID: storage.NewID()}, time.Now())
			Expect(pub.PublishRecord(ctx, event)).To(Succeed())
		})
	})
})
