package persistence_test

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/persistence"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/storage/inmemory"
	"github.com/papercomputeco/tapestream/pkg/stream"
	testutils "github.com/papercomputeco/tapestream/pkg/utils/test"
)

var _ = Describe("Persister as a relay sink", func() {
	It("records a relayed agent turn", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()
		p, err := persistence.New(persistence.Config{
			Driver:    driver,
			Scheduler: testutils.NewManualScheduler(epoch),
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		upstream := strings.Join([]string{
			"event: token\ndata: {\"type\":\"token\",\"content\":\"Hello\"}\n\n",
			"event: tool_start\ndata: {\"tool\":\"search\"}\n\n",
			"event: tool_end\ndata: {\"tool\":\"search\",\"result\":{\"ok\":true}}\n\n",
			"event: token\ndata: {\"type\":\"token\",\"content\":\", world\"}\n\n",
			"event: complete\ndata: {}\n\n",
		}, "")

		tr, err := stream.NewTranslator(stream.ProviderAgent)
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		p.OpenStream("c1")
		summary, err := stream.NewRelay(tr, p, logger.Nop()).Run(ctx,
			strings.NewReader(upstream),
			stream.NewEncoder(&out, logger.Nop()),
			stream.StreamMeta{ConversationID: "c1", AgentID: "writer", AgentName: "Writer"},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Content).To(Equal("Hello, world"))
		Expect(p.State("c1")).To(Equal(persistence.StateEnded))
		Expect(p.Close()).To(Succeed())

		msgs, err := driver.ListMessages(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())

		var assistant []string
		var tools []string
		for _, m := range msgs {
			switch m.Role {
			case storage.RoleAssistant:
				assistant = append(assistant, m.Content)
			case storage.RoleTool:
				tools = append(tools, m.Status)
			}
		}
		Expect(assistant).To(Equal([]string{"Hello, world"}))
		Expect(tools).To(ConsistOf(storage.StatusStarted, storage.StatusCompleted))

		interactions, err := driver.ListInteractions(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		var actions []string
		for _, i := range interactions {
			actions = append(actions, i.ActionType)
		}
		Expect(actions).To(ConsistOf(
			storage.ActionStart,
			storage.ActionComplete,
			storage.ActionConversationEnd,
		))
	})
})
