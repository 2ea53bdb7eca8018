package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		Expect(app.Shutdown()).To(Succeed())
	})

	Describe("SetUpstreamRequestHeaders", func() {
		var got http.Header

		BeforeEach(func() {
			got = nil
			app.Post("/chat", func(c *fiber.Ctx) error {
				req, _ := http.NewRequest(http.MethodPost, "http://upstream/v1/agent/stream", nil)
				hh.SetUpstreamRequestHeaders(c, req)
				got = req.Header
				return c.SendStatus(fiber.StatusOK)
			})
		})

		send := func(headers map[string]string) {
			req := httptest.NewRequest(http.MethodPost, "/chat", nil)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
		}

		It("forwards credentials and tracing headers", func() {
			send(map[string]string{
				"Authorization": "Bearer token123",
				"X-Api-Key":     "secret",
				"X-Request-Id":  "req-1",
			})

			Expect(got.Get("Authorization")).To(Equal("Bearer token123"))
			Expect(got.Get("X-Api-Key")).To(Equal("secret"))
			Expect(got.Get("X-Request-Id")).To(Equal("req-1"))
		})

		DescribeTable("drops headers that do not describe the rebuilt request",
			func(name, value string) {
				send(map[string]string{name: value, "Authorization": "Bearer t"})
				Expect(got.Get(name)).To(BeEmpty())
				Expect(got.Get("Authorization")).To(Equal("Bearer t"))
			},
			Entry("connection", "Connection", "keep-alive"),
			Entry("accept encoding", "Accept-Encoding", "gzip, br"),
			Entry("content type", "Content-Type", "text/plain"),
			Entry("accept", "Accept", "text/event-stream"),
			Entry("agent name", AgentNameHeader, "planner"),
		)
	})

	Describe("SetClientResponseHeaders", func() {
		It("copies upstream headers except the ones the proxy owns", func() {
			app.Get("/chat", func(c *fiber.Ctx) error {
				hh.SetClientResponseHeaders(c, &http.Response{Header: http.Header{
					"X-Request-Id":      {"abc-123"},
					"X-Multi":           {"a", "b"},
					"Content-Type":      {"application/x-ndjson"},
					"Content-Encoding":  {"gzip"},
					"Transfer-Encoding": {"chunked"},
				}})
				return c.SendString("ok")
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/chat", nil))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
			Expect(resp.Header.Get("X-Multi")).To(Equal("a, b"))
			Expect(resp.Header.Get("Content-Type")).NotTo(Equal("application/x-ndjson"))
			Expect(resp.Header.Get("Content-Encoding")).To(BeEmpty())
		})
	})

	Describe("AgentName", func() {
		var name string

		BeforeEach(func() {
			app.Get("/agent", func(c *fiber.Ctx) error {
				name = hh.AgentName(c, "assistant")
				return c.SendStatus(fiber.StatusNoContent)
			})
		})

		It("uses the header when present", func() {
			req := httptest.NewRequest(http.MethodGet, "/agent", nil)
			req.Header.Set(AgentNameHeader, " planner ")
			resp, err := app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(name).To(Equal("planner"))
		})

		It("falls back when the header is missing", func() {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/agent", nil))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(name).To(Equal("assistant"))
		})
	})
})
