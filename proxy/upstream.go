package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/tapestream/pkg/stream"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

// anthropicVersion is sent when the client did not pick one.
const anthropicVersion = "2023-06-01"

type agentRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type anthropicRequest struct {
	Model     string        `json:"model,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
}

// upstreamBody builds the provider-specific request for one chat turn.
// Upstream is always asked to stream; non-streaming clients are served by
// draining the relay into memory.
func (p *Proxy) upstreamBody(message, conversationID, agentID string) ([]byte, error) {
	var body any
	switch p.config.Provider {
	case stream.ProviderAgent:
		body = agentRequest{Message: message, ConversationID: conversationID, AgentID: agentID}
	case stream.ProviderOpenAI:
		body = openAIRequest{
			Model:    p.config.Model,
			Messages: []chatMessage{{Role: "user", Content: message}},
			Stream:   true,
		}
	case stream.ProviderAnthropic:
		maxTokens := p.config.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		body = anthropicRequest{
			Model:     p.config.Model,
			Messages:  []chatMessage{{Role: "user", Content: message}},
			MaxTokens: maxTokens,
			Stream:    true,
		}
	default:
		return nil, fmt.Errorf("unsupported provider %q", p.config.Provider)
	}
	return json.Marshal(body)
}

// setProviderHeaders sets the headers every upstream request carries.
func (p *Proxy) setProviderHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	switch p.config.Provider {
	case stream.ProviderOpenAI:
		if p.config.APIKey != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		}
	case stream.ProviderAnthropic:
		if req.Header.Get("Anthropic-Version") == "" {
			req.Header.Set("Anthropic-Version", anthropicVersion)
		}
		if p.config.APIKey != "" && req.Header.Get("X-Api-Key") == "" {
			req.Header.Set("X-Api-Key", p.config.APIKey)
		}
	}
}

// upstreamErrorMessage extracts a human readable message from a failed
// upstream response. Both {"error":"..."} and {"error":{"message":"..."}}
// bodies are understood.
func upstreamErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		var s string
		if json.Unmarshal(parsed.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}

	if text := strings.TrimSpace(string(raw)); text != "" {
		return utils.Truncate(text, 512)
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("upstream returned status %d", resp.StatusCode)
}
