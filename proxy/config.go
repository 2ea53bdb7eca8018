package proxy

import (
	"net/http"
	"time"
)

// DefaultMaxTokens is sent to providers that require an output budget.
const DefaultMaxTokens = 4096

// DefaultUpstreamTimeout bounds a whole upstream exchange. Agent turns can be
// slow, especially with tool calls.
const DefaultUpstreamTimeout = 5 * time.Minute

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the base URL of the upstream runtime (e.g., "http://localhost:9000")
	UpstreamURL string

	// UpstreamPath is appended to UpstreamURL for every chat request.
	UpstreamPath string

	// Provider is the upstream dialect: "agent", "openai" or "anthropic".
	Provider string

	// Model is sent to the openai and anthropic providers.
	Model string

	// MaxTokens is the anthropic output budget. Zero means DefaultMaxTokens.
	MaxTokens int

	// DefaultAgent attributes requests that carry no agent header.
	DefaultAgent string

	// APIKey authenticates to openai and anthropic upstreams when the client
	// request does not carry its own credentials.
	APIKey string

	// HTTPClient talks to upstream. Nil means a client with DefaultUpstreamTimeout.
	HTTPClient *http.Client
}

func (c Config) upstreamEndpoint() string {
	return c.UpstreamURL + c.UpstreamPath
}
