package worker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/persistence/worker"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/storage/inmemory"
)

// gatedDriver blocks message writes until release is closed.
type gatedDriver struct {
	*inmemory.Driver
	release chan struct{}
}

func (d *gatedDriver) SaveMessage(ctx context.Context, m *storage.Message) error {
	<-d.release
	return d.Driver.SaveMessage(ctx, m)
}

// failingDriver fails every write.
type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) SaveMessage(context.Context, *storage.Message) error {
	return errors.New("disk full")
}

func (failingDriver) SaveInteraction(context.Context, *storage.Interaction) error {
	return errors.New("disk full")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.RecordPersistedEvent
	err    error
}

func (p *recordingPublisher) PublishRecord(_ context.Context, e *eventstream.RecordPersistedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func message(conv, content string) *storage.Message {
	return &storage.Message{ConversationID: conv, AgentID: "writer", Role: storage.RoleAssistant, Content: content}
}

var _ = Describe("Worker Pool", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("requires a driver", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("writes messages and interactions and drains on close", func() {
		wp, err := worker.NewPool(&worker.Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(worker.Job{Message: message("c1", "hello")})).To(BeTrue())
		Expect(wp.Enqueue(worker.Job{Interaction: &storage.Interaction{
			ConversationID: "c1",
			AgentID:        "writer",
			ActionType:     storage.ActionComplete,
		}})).To(BeTrue())
		wp.Close()

		msgs, err := driver.ListMessages(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("hello"))

		interactions, err := driver.ListInteractions(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(interactions).To(HaveLen(1))

		Expect(wp.Stats()).To(Equal(worker.Stats{Enqueued: 2, Written: 2}))
	})

	It("drops jobs when the queue is full", func() {
		gated := &gatedDriver{Driver: driver, release: make(chan struct{})}
		wp, err := worker.NewPool(&worker.Config{Driver: gated, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// the single worker picks up the first job and blocks on the gate
		Expect(wp.Enqueue(worker.Job{Message: message("c1", "a")})).To(BeTrue())
		Eventually(func() bool {
			return wp.Enqueue(worker.Job{Message: message("c1", "b")})
		}).Should(BeTrue())
		Expect(wp.Enqueue(worker.Job{Message: message("c1", "c")})).To(BeFalse())

		close(gated.release)
		wp.Close()

		Expect(wp.Stats().Dropped).To(BeNumerically(">=", 1))
		msgs, err := driver.ListMessages(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(len(msgs)).To(BeNumerically(">=", 2))
		for _, m := range msgs {
			Expect(m.Content).NotTo(Equal("c"))
		}
	})

	It("drops jobs after close and tolerates a second close", func() {
		wp, err := worker.NewPool(&worker.Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())
		wp.Close()

		Expect(wp.Enqueue(worker.Job{Message: message("c1", "late")})).To(BeFalse())
		Expect(wp.Stats().Dropped).To(Equal(uint64(1)))
		wp.Close()
	})

	It("counts storage failures without publishing", func() {
		pub := &recordingPublisher{}
		wp, err := worker.NewPool(&worker.Config{Driver: failingDriver{driver}, Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(worker.Job{Message: message("c1", "x")})
		wp.Enqueue(worker.Job{Interaction: &storage.Interaction{ConversationID: "c1"}})
		wp.Close()

		Expect(wp.Stats().Failed).To(Equal(uint64(2)))
		Expect(pub.types()).To(BeEmpty())
	})

	It("publishes a record event after each write", func() {
		pub := &recordingPublisher{}
		wp, err := worker.NewPool(&worker.Config{Driver: driver, Publisher: pub, NumWorkers: 1})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(worker.Job{Message: message("c1", "x")})
		wp.Enqueue(worker.Job{Interaction: &storage.Interaction{ConversationID: "c1", ActionType: storage.ActionStart}})
		wp.Close()

		Expect(pub.types()).To(Equal([]string{
			eventstream.EventTypeMessagePersisted,
			eventstream.EventTypeInteractionPersisted,
		}))
	})

	It("keeps the write when publishing fails", func() {
		pub := &recordingPublisher{err: errors.New("broker down")}
		wp, err := worker.NewPool(&worker.Config{Driver: driver, Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(worker.Job{Message: message("c1", "x")})
		wp.Close()

		Expect(wp.Stats().Written).To(Equal(uint64(1)))
		msgs, _ := driver.ListMessages(ctx, "c1")
		Expect(msgs).To(HaveLen(1))
	})
})
