package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tapestream/pkg/agent"
	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/persistence"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tapestream/pkg/utils/test"
)

var epoch = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type brokenPersistence struct{}

var errBroken = errors.New("store offline")

func (brokenPersistence) SaveAgentData(context.Context, string, string, string, any, *time.Time) error {
	return errBroken
}

func (brokenPersistence) GetAgentData(context.Context, string, string, string) (json.RawMessage, error) {
	return nil, errBroken
}

func (brokenPersistence) CleanupExpiredData(context.Context) (int64, error) {
	return 0, errBroken
}

func (brokenPersistence) Stats() persistence.Stats { return persistence.Stats{} }

type brokenRecords struct{}

func (brokenRecords) ListMessages(context.Context, string) ([]*storage.Message, error) {
	return nil, errBroken
}

func (brokenRecords) ListInteractions(context.Context, string) ([]*storage.Interaction, error) {
	return nil, errBroken
}

func do(s *Server, method, path, body string) (*http.Response, string) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(raw)
}

var _ = Describe("Server", func() {
	var (
		ctx       context.Context
		sched     *testutils.ManualScheduler
		driver    *inmemory.Driver
		persister *persistence.Persister
		server    *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		sched = testutils.NewManualScheduler(epoch)
		driver = inmemory.NewDriver()

		var err error
		persister, err = persistence.New(persistence.Config{
			Driver:    driver,
			Scheduler: sched,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, driver, persister, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		server.now = sched.Now
	})

	AfterEach(func() {
		Expect(server.Shutdown()).To(Succeed())
		Expect(persister.Close()).To(Succeed())
	})

	It("answers ping", func() {
		resp, body := do(server, http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(Equal(`"pong"`))
	})

	Describe("records", func() {
		BeforeEach(func() {
			Expect(driver.SaveMessage(ctx, &storage.Message{
				ConversationID: "c1",
				AgentID:        "writer",
				Role:           storage.RoleAssistant,
				Content:        "Hello",
				CreatedAt:      epoch,
			})).To(Succeed())
			Expect(driver.SaveInteraction(ctx, &storage.Interaction{
				ConversationID: "c1",
				AgentID:        "writer",
				ActionType:     storage.ActionStart,
				CreatedAt:      epoch,
			})).To(Succeed())
		})

		It("lists a conversation's messages", func() {
			resp, body := do(server, http.MethodGet, "/v1/conversations/c1/messages", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got MessagesResponse
			Expect(json.Unmarshal([]byte(body), &got)).To(Succeed())
			Expect(got.ConversationID).To(Equal("c1"))
			Expect(got.Count).To(Equal(1))
			Expect(got.Messages[0].Content).To(Equal("Hello"))
		})

		It("lists a conversation's interactions", func() {
			_, body := do(server, http.MethodGet, "/v1/conversations/c1/interactions", "")

			var got InteractionsResponse
			Expect(json.Unmarshal([]byte(body), &got)).To(Succeed())
			Expect(got.Count).To(Equal(1))
			Expect(got.Interactions[0].ActionType).To(Equal(storage.ActionStart))
		})

		It("returns an empty list for an unknown conversation", func() {
			_, body := do(server, http.MethodGet, "/v1/conversations/nope/messages", "")
			Expect(body).To(MatchJSON(`{"conversationId":"nope","count":0,"messages":[]}`))
		})
	})

	Describe("agent data", func() {
		const path = "/v1/conversations/c1/agents/planner/data/plan"

		It("stores and returns a value", func() {
			resp, _ := do(server, http.MethodPut, path, `{"data":{"steps":["a","b"]}}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, body := do(server, http.MethodGet, path, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
			Expect(body).To(MatchJSON(`{"steps":["a","b"]}`))
		})

		It("returns 404 for a missing value", func() {
			resp, body := do(server, http.MethodGet, path, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"error":"agent data not found"}`))
		})

		It("expires values with a ttl", func() {
			resp, _ := do(server, http.MethodPut, path, `{"data":1,"ttl":"1m"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, _ = do(server, http.MethodGet, path, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			sched.Advance(2 * time.Minute)

			resp, _ = do(server, http.MethodGet, path, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			_, body := do(server, http.MethodPost, "/v1/maintenance/cleanup", "")
			Expect(body).To(MatchJSON(`{"deleted":1}`))
		})

		It("honours an explicit expiration", func() {
			at := epoch.Add(time.Hour).Format(time.RFC3339)
			do(server, http.MethodPut, path, `{"data":"x","expiresAt":"`+at+`","ttl":"1s"}`)

			sched.Advance(time.Minute)
			resp, _ := do(server, http.MethodGet, path, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		DescribeTable("rejects invalid writes",
			func(body string) {
				resp, _ := do(server, http.MethodPut, path, body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			},
			Entry("malformed body", `{"data":`),
			Entry("missing data", `{"ttl":"1m"}`),
			Entry("bad ttl", `{"data":1,"ttl":"soon"}`),
			Entry("negative ttl", `{"data":1,"ttl":"-1m"}`),
		)
	})

	It("reports persister stats", func() {
		persister.OpenStream("c1")
		persister.SaveEvent(ctx, agent.ContentChunk{Agent: "writer", Content: "hi"}, "c1")

		_, body := do(server, http.MethodGet, "/v1/stats", "")

		var stats persistence.Stats
		Expect(json.Unmarshal([]byte(body), &stats)).To(Succeed())
		Expect(stats.OpenBuffers).To(Equal(1))
		Expect(stats.Streams).To(Equal(1))
	})

	It("does not mount pprof unless asked", func() {
		resp, _ := do(server, http.MethodGet, "/debug/pprof/cmdline", "")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	Context("with pprof enabled", func() {
		It("serves the profiling index", func() {
			s, err := NewServer(Config{Pprof: true}, driver, persister, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer s.Shutdown()

			resp, _ := do(s, http.MethodGet, "/debug/pprof/cmdline", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Context("when the stores fail", func() {
		var broken *Server

		BeforeEach(func() {
			var err error
			broken, err = NewServer(Config{}, brokenRecords{}, brokenPersistence{}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(broken.Shutdown()).To(Succeed())
		})

		DescribeTable("surfaces errors as 500",
			func(method, path, body string) {
				resp, _ := do(broken, method, path, body)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			},
			Entry("messages", http.MethodGet, "/v1/conversations/c1/messages", ""),
			Entry("interactions", http.MethodGet, "/v1/conversations/c1/interactions", ""),
			Entry("get agent data", http.MethodGet, "/v1/conversations/c1/agents/a/data/t", ""),
			Entry("put agent data", http.MethodPut, "/v1/conversations/c1/agents/a/data/t", `{"data":1}`),
			Entry("cleanup", http.MethodPost, "/v1/maintenance/cleanup", ""),
		)
	})
})
