// Package header filters headers crossing the tapestream proxy.
//
// The proxy sits between a thin client and an upstream LLM runtime:
//
//	Client <--> Proxy <--> Upstream runtime
//
// The proxy rewrites both bodies, so only headers that still describe the
// request (credentials, tracing ids) cross each leg.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AgentNameHeader optionally selects the agent a chat request is attributed to.
const AgentNameHeader = "X-Tapestream-Agent-Name"

// ConversationIDHeader echoes the conversation of a chat response.
const ConversationIDHeader = "X-Tapestream-Conversation-Id"

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of client request headers not forwarded upstream.
var skipRequest = map[string]struct{}{
	// Hop-by-hop.
	"Connection": {},

	// Rewritten by http.Transport to match the upstream URL.
	"Host": {},

	// http.Transport negotiates gzip itself and decompresses transparently.
	"Accept-Encoding": {},

	// The upstream body is rebuilt per provider, so the client's framing
	// headers no longer describe it.
	"Content-Length": {},
	"Content-Type":   {},
	"Accept":         {},

	AgentNameHeader: {},
}

// skipResponse is the set of upstream response headers not copied to the
// client. The client body is always the proxy's own event stream or JSON.
var skipResponse = map[string]struct{}{
	"Connection":        {},
	"Transfer-Encoding": {},
	"Content-Encoding":  {},
	"Content-Length":    {},
	"Content-Type":      {},
	"Cache-Control":     {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that must not reach upstream.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies upstream response headers to the Fiber
// context, filtering the ones the proxy sets itself.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// AgentName returns the agent named by the request, or fallback.
func (h *Handler) AgentName(c *fiber.Ctx, fallback string) string {
	if name := strings.TrimSpace(c.Get(AgentNameHeader)); name != "" {
		return name
	}
	return fallback
}
