package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/tapestream/pkg/agent"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/stream"
	"github.com/papercomputeco/tapestream/pkg/utils"
	"github.com/papercomputeco/tapestream/proxy/header"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`

	// Stream selects the event-stream response. Absent means true.
	Stream *bool `json:"stream,omitempty"`
}

// ChatResponse is the body of a non-streaming chat turn.
type ChatResponse struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (r ChatRequest) streaming() bool {
	return r.Stream == nil || *r.Stream
}

func (p *Proxy) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	agentID := p.headerHandler.AgentName(c, p.config.DefaultAgent)
	logger := p.logger.With("conversation_id", convID, "agent_id", agentID)

	p.recorder.OpenStream(convID)
	p.saveUserMessage(c.UserContext(), convID, agentID, req.Message, logger)

	body, err := p.upstreamBody(req.Message, convID, agentID)
	if err != nil {
		logger.Error("building upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}

	// context.Background() because fasthttp recycles its RequestCtx once the
	// handler returns while the relay goroutine still reads the upstream body.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, p.config.upstreamEndpoint(), bytes.NewReader(body))
	if err != nil {
		logger.Error("creating upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)
	p.setProviderHeaders(httpReq)

	logger.Debug("forwarding chat turn to upstream",
		"url", httpReq.URL.String(),
		"stream", req.streaming(),
		"message", utils.Truncate(req.Message, 64),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("upstream request failed", "error", err)
		p.recordFailure(convID, agentID, "upstream request failed: "+err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := upstreamErrorMessage(httpResp)
		httpResp.Body.Close()
		logger.Error("upstream returned error", "status", httpResp.StatusCode, "error", msg)
		p.recordFailure(convID, agentID, msg)
		return c.Status(httpResp.StatusCode).JSON(ErrorResponse{Error: msg})
	}

	tr, err := stream.NewTranslator(p.config.Provider)
	if err != nil {
		httpResp.Body.Close()
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
	relay := stream.NewRelay(tr, p.recorder, logger)
	meta := stream.StreamMeta{ConversationID: convID, AgentID: agentID, AgentName: agentID}

	c.Set(header.ConversationIDHeader, convID)
	if req.streaming() {
		return p.streamChat(c, httpResp, relay, meta, logger)
	}
	return p.bufferChat(c, httpResp, relay, meta, logger)
}

// streamChat relays the upstream body to the client as it arrives.
func (p *Proxy) streamChat(c *fiber.Ctx, httpResp *http.Response, relay *stream.Relay, meta stream.StreamMeta, logger *slog.Logger) error {
	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe instead of SetBodyStreamWriter: pw.Write blocks until
	// fasthttp's chunked writer has consumed the frame, so every frame is
	// flushed to the socket as soon as it is relayed.
	pr, pw := io.Pipe()
	go func() {
		defer httpResp.Body.Close()
		defer pw.Close()

		enc := stream.NewEncoder(pw, logger)
		if _, err := relay.Run(context.Background(), httpResp.Body, enc, meta); err != nil && !stream.IsClientGone(err) {
			logger.Warn("stream ended with error", "error", err)
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// bufferChat drains the relay into memory and answers with the full content.
func (p *Proxy) bufferChat(c *fiber.Ctx, httpResp *http.Response, relay *stream.Relay, meta stream.StreamMeta, logger *slog.Logger) error {
	defer httpResp.Body.Close()

	var buf bytes.Buffer
	summary, err := relay.Run(c.UserContext(), httpResp.Body, stream.NewEncoder(&buf, logger), meta)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "upstream stream failed"})
	}

	return c.JSON(ChatResponse{ConversationID: summary.ConversationID, Content: summary.Content})
}

// recordFailure persists a turn that failed before any frame was relayed.
func (p *Proxy) recordFailure(conversationID, agentID, message string) {
	ctx := context.Background()
	p.recorder.SaveEvent(ctx, agent.Error{Agent: agentID, Message: message}, conversationID)
	p.recorder.SaveEvent(ctx, agent.ConversationEnd{}, conversationID)
}

func (p *Proxy) saveUserMessage(ctx context.Context, conversationID, agentID, content string, logger *slog.Logger) {
	err := p.store.SaveMessage(ctx, &storage.Message{
		ConversationID: conversationID,
		AgentID:        agentID,
		Role:           storage.RoleUser,
		Content:        content,
	})
	if err != nil {
		logger.Error("saving user message", "error", err)
	}
}
