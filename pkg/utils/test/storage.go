package testutils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// DriverBehaviors registers the specs every storage.Driver satisfies.
// newDriver is called once per test and may Skip.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		ctx  context.Context
		d    storage.Driver
		conv string
	)

	BeforeEach(func() {
		ctx = context.Background()
		d = newDriver()
		conv = "conv-" + uuid.NewString()
	})

	AfterEach(func() {
		if d != nil {
			Expect(d.Close()).To(Succeed())
		}
	})

	Describe("messages", func() {
		It("assigns an ID and creation time", func() {
			m := &storage.Message{ConversationID: conv, Role: storage.RoleAssistant, Content: "hi"}
			Expect(d.SaveMessage(ctx, m)).To(Succeed())

			Expect(m.ID).NotTo(BeEmpty())
			Expect(m.CreatedAt).NotTo(BeZero())
		})

		It("round trips every field", func() {
			created := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
			m := &storage.Message{
				ConversationID: conv,
				AgentID:        "agent-X",
				Role:           storage.RoleTool,
				Content:        "line one\nline \"two\" ✓",
				ToolName:       "search",
				Status:         storage.StatusCompleted,
				Metadata:       json.RawMessage(`{"result":{"hits":2}}`),
				CreatedAt:      created,
			}
			Expect(d.SaveMessage(ctx, m)).To(Succeed())

			got, err := d.ListMessages(ctx, conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ID).To(Equal(m.ID))
			Expect(got[0].AgentID).To(Equal("agent-X"))
			Expect(got[0].Role).To(Equal(storage.RoleTool))
			Expect(got[0].Content).To(Equal("line one\nline \"two\" ✓"))
			Expect(got[0].ToolName).To(Equal("search"))
			Expect(got[0].Status).To(Equal(storage.StatusCompleted))
			Expect(string(got[0].Metadata)).To(MatchJSON(`{"result":{"hits":2}}`))
			Expect(got[0].CreatedAt).To(BeTemporally("~", created, time.Second))
		})

		It("lists a conversation's messages oldest first", func() {
			base := time.Now().Add(-time.Hour)
			for i, content := range []string{"first", "second", "third"} {
				Expect(d.SaveMessage(ctx, &storage.Message{
					ConversationID: conv,
					Role:           storage.RoleAssistant,
					Content:        content,
					CreatedAt:      base.Add(time.Duration(i) * time.Second),
				})).To(Succeed())
			}
			Expect(d.SaveMessage(ctx, &storage.Message{ConversationID: conv + "-other", Role: storage.RoleAssistant, Content: "elsewhere"})).To(Succeed())

			got, err := d.ListMessages(ctx, conv)
			Expect(err).NotTo(HaveOccurred())

			contents := make([]string, 0, len(got))
			for _, m := range got {
				contents = append(contents, m.Content)
			}
			Expect(contents).To(Equal([]string{"first", "second", "third"}))
		})

		It("returns nothing for an unknown conversation", func() {
			got, err := d.ListMessages(ctx, conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})

	Describe("interactions", func() {
		It("round trips every field", func() {
			i := &storage.Interaction{
				ConversationID: conv,
				AgentID:        "agent-Y",
				ActionType:     storage.ActionSwitch,
				FromAgent:      "agent-X",
				Reason:         "billing question",
			}
			Expect(d.SaveInteraction(ctx, i)).To(Succeed())
			Expect(i.ID).NotTo(BeEmpty())

			got, err := d.ListInteractions(ctx, conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].AgentID).To(Equal("agent-Y"))
			Expect(got[0].ActionType).To(Equal(storage.ActionSwitch))
			Expect(got[0].FromAgent).To(Equal("agent-X"))
			Expect(got[0].Reason).To(Equal("billing question"))
			Expect(got[0].StateSnapshot).To(BeNil())
		})

		It("keeps the state snapshot", func() {
			Expect(d.SaveInteraction(ctx, &storage.Interaction{
				ConversationID: conv,
				AgentID:        "agent-X",
				ActionType:     storage.ActionComplete,
				StateSnapshot:  json.RawMessage(`{"chunks":3}`),
			})).To(Succeed())

			got, err := d.ListInteractions(ctx, conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got[0].StateSnapshot)).To(MatchJSON(`{"chunks":3}`))
		})
	})

	AgentDataStoreBehaviors(func() storage.AgentDataDriver { return d })
}

// AgentDataStoreBehaviors registers the specs every agent-scoped side store
// satisfies. newStore is called once per test; the caller owns closing it.
func AgentDataStoreBehaviors(newStore func() storage.AgentDataDriver) {
	var (
		ctx   context.Context
		store storage.AgentDataDriver
		conv  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
		conv = "conv-" + uuid.NewString()
	})

	Describe("agent data", func() {
		It("reports a missing entry as not found", func() {
			_, err := store.GetAgentData(ctx, conv, "agent-X", "plan")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("stores and replaces an entry", func() {
			expires := time.Now().Add(time.Hour)
			Expect(store.UpsertAgentData(ctx, &storage.AgentData{
				ConversationID: conv,
				AgentID:        "agent-X",
				DataType:       "plan",
				Data:           json.RawMessage(`{"step":1}`),
				ExpiresAt:      &expires,
			})).To(Succeed())

			got, err := store.GetAgentData(ctx, conv, "agent-X", "plan")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got.Data)).To(MatchJSON(`{"step":1}`))
			Expect(got.ExpiresAt).NotTo(BeNil())
			Expect(*got.ExpiresAt).To(BeTemporally("~", expires, time.Second))

			Expect(store.UpsertAgentData(ctx, &storage.AgentData{
				ConversationID: conv,
				AgentID:        "agent-X",
				DataType:       "plan",
				Data:           json.RawMessage(`{"step":2}`),
			})).To(Succeed())

			got, err = store.GetAgentData(ctx, conv, "agent-X", "plan")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got.Data)).To(MatchJSON(`{"step":2}`))
			Expect(got.ExpiresAt).To(BeNil())
		})

		It("scopes entries by agent and data type", func() {
			Expect(store.UpsertAgentData(ctx, &storage.AgentData{
				ConversationID: conv, AgentID: "agent-X", DataType: "plan", Data: json.RawMessage(`1`),
			})).To(Succeed())

			_, err := store.GetAgentData(ctx, conv, "agent-Y", "plan")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			_, err = store.GetAgentData(ctx, conv, "agent-X", "memory")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("deletes only expired entries", func() {
			past := time.Now().Add(-time.Minute)
			future := time.Now().Add(time.Hour)

			for dataType, expiresAt := range map[string]*time.Time{
				"expired": &past,
				"live":    &future,
				"forever": nil,
			} {
				Expect(store.UpsertAgentData(ctx, &storage.AgentData{
					ConversationID: conv,
					AgentID:        "agent-X",
					DataType:       dataType,
					Data:           json.RawMessage(`"v"`),
					ExpiresAt:      expiresAt,
				})).To(Succeed())
			}

			_, err := store.DeleteExpiredAgentData(ctx, time.Now())
			Expect(err).NotTo(HaveOccurred())

			_, err = store.GetAgentData(ctx, conv, "agent-X", "expired")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = store.GetAgentData(ctx, conv, "agent-X", "live")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.GetAgentData(ctx, conv, "agent-X", "forever")
			Expect(err).NotTo(HaveOccurred())
		})
	})
}
