// Package client is the consuming side of the tapestream wire protocol. A
// Consumer sends a chat request to the proxy, reconstructs the streamed text
// from its frames and, once the stream is over, posts the reconstructed
// content back as a durability backstop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/tapestream/pkg/sse"
	"github.com/papercomputeco/tapestream/pkg/stream"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

// Request is a chat request sent to the proxy.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Stream         bool   `json:"stream"`
}

// Result is the outcome of a successfully consumed stream. ConversationID is
// empty when the stream never announced one.
type Result struct {
	Content        string
	ConversationID string
}

// Callbacks receive stream events as they are decoded. Every field is
// optional.
type Callbacks struct {
	OnConversationID func(id string)

	// OnChunk receives only the newly decoded increment.
	OnChunk func(increment string)

	// OnFinish is invoked exactly once per successful stream with the full
	// accumulated content.
	OnFinish func(content, conversationID string)

	// OnError is invoked at most once, when the stream fails.
	OnError func(err error)
}

// StatusError is returned for a non-success response from the proxy.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("proxy returned status %d: %s", e.StatusCode, e.Message)
}

// Config configures a Consumer.
type Config struct {
	// BaseURL is the proxy address, e.g. http://localhost:8080.
	BaseURL string

	HTTPClient *http.Client
	Logger     *slog.Logger

	// Header is added to every request, e.g. the agent name header.
	Header http.Header

	// ResponseHeaderTimeout bounds the wait for the proxy's response
	// headers when HTTPClient is nil. The streamed body itself is bounded
	// only by the request context. Defaults to DefaultResponseHeaderTimeout.
	ResponseHeaderTimeout time.Duration
}

const (
	// DefaultResponseHeaderTimeout is how long the default client waits
	// for the first response byte; LLM responses can be slow to start.
	DefaultResponseHeaderTimeout = 5 * time.Minute

	persistTimeout = 30 * time.Second
)

// Consumer talks to a tapestream proxy.
type Consumer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	header     http.Header
}

// New creates a Consumer.
func New(cfg Config) (*Consumer, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		headerTimeout := cfg.ResponseHeaderTimeout
		if headerTimeout <= 0 {
			headerTimeout = DefaultResponseHeaderTimeout
		}
		// No Client.Timeout: it would cut off long streams mid-body.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = headerTimeout
		httpClient = &http.Client{Transport: transport}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Consumer{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		header:     cfg.Header.Clone(),
	}, nil
}

type chatResponse struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Send posts req to the proxy and consumes the response. After a successful
// stream with a known conversation ID, the accumulated content is posted to
// the conversation's messages endpoint; a failure there is only logged.
func (c *Consumer) Send(ctx context.Context, req Request, cb Callbacks) (*Result, error) {
	s := &session{cb: cb, logger: c.logger}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, s.fail(fmt.Errorf("marshaling request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, s.fail(fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(httpReq)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("sending chat request",
		"base_url", c.baseURL,
		"conversation_id", req.ConversationID,
		"stream", req.Stream,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, s.fail(fmt.Errorf("sending request to proxy: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.fail(statusError(resp))
	}

	var result *Result
	if req.Stream {
		result, err = s.consume(ctx, resp.Body)
	} else {
		result, err = s.consumeJSON(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	if result.ConversationID != "" {
		if err := c.persist(ctx, result.ConversationID, result.Content); err != nil {
			c.logger.Warn("persisting final content",
				"conversation_id", result.ConversationID,
				"error", err,
			)
		}
	}

	return result, nil
}

// Consume decodes a wire protocol stream from body and dispatches callbacks.
// It does not issue the final persistence call.
func (c *Consumer) Consume(ctx context.Context, body io.Reader, cb Callbacks) (*Result, error) {
	s := &session{cb: cb, logger: c.logger}
	return s.consume(ctx, body)
}

func (c *Consumer) persist(ctx context.Context, conversationID, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshaling content: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	endpoint := c.baseURL + "/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	return nil
}

func (c *Consumer) setHeaders(req *http.Request) {
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body errorResponse
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// session tracks one consumed stream.
type session struct {
	cb     Callbacks
	logger *slog.Logger

	content        strings.Builder
	conversationID string
	finished       bool
	failed         bool
}

func (s *session) consume(ctx context.Context, body io.Reader) (*Result, error) {
	reader := sse.NewReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(err)
		}

		f, err := reader.Next()
		if err != nil {
			if s.finished {
				// The end frame already settled the outcome.
				s.logger.Warn("stream read failed after end",
					"conversation_id", s.conversationID,
					"error", err,
				)
				break
			}
			return nil, s.fail(fmt.Errorf("reading stream: %w", err))
		}
		if f == nil {
			break
		}
		s.dispatch(*f)
	}

	if !s.finished {
		s.logger.Debug("stream closed without an end frame",
			"conversation_id", s.conversationID,
		)
		s.finish()
	}

	return s.result(), nil
}

func (s *session) consumeJSON(body io.Reader) (*Result, error) {
	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, s.fail(fmt.Errorf("decoding response: %w", err))
	}

	s.setConversationID(resp.ConversationID)
	s.chunk(resp.Content)
	s.finish()
	return s.result(), nil
}

func (s *session) dispatch(f sse.Frame) {
	if s.finished {
		s.logger.Warn("ignoring frame after end",
			"event", f.Type,
			"conversation_id", s.conversationID,
		)
		return
	}

	switch f.Type {
	case stream.EventConversationID:
		s.setConversationID(f.Data)
	case stream.EventChunk:
		s.chunk(stream.DecodeChunk(f.Data))
	case stream.EventEnd:
		s.finish()
	default:
		s.logger.Debug("ignoring unknown frame",
			"event", f.Type,
			"data", utils.Truncate(f.Data, 64),
		)
	}
}

func (s *session) setConversationID(id string) {
	if id == "" {
		return
	}
	s.conversationID = id
	if s.cb.OnConversationID != nil {
		s.cb.OnConversationID(id)
	}
}

func (s *session) chunk(increment string) {
	s.content.WriteString(increment)
	if s.cb.OnChunk != nil {
		s.cb.OnChunk(increment)
	}
}

func (s *session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	if s.cb.OnFinish != nil {
		s.cb.OnFinish(s.content.String(), s.conversationID)
	}
}

func (s *session) fail(err error) error {
	if !s.failed {
		s.failed = true
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
	}
	return err
}

func (s *session) result() *Result {
	return &Result{Content: s.content.String(), ConversationID: s.conversationID}
}
