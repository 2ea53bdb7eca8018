package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/papercomputeco/tapestream/pkg/agent"
	"github.com/papercomputeco/tapestream/pkg/sse"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

// EventSink receives the agent events observed while relaying a stream.
// SaveEvent must not block on I/O.
type EventSink interface {
	SaveEvent(ctx context.Context, ev agent.Event, conversationID string)
}

// StreamMeta identifies the stream being relayed.
type StreamMeta struct {
	ConversationID string
	AgentID        string
	AgentName      string
}

// Summary describes a relayed stream.
type Summary struct {
	ConversationID string
	AgentID        string

	// Content is the concatenation of every forwarded chunk, in order.
	Content string

	Chunks  int
	Dropped int

	// TerminalObserved is set when upstream sent its own completion signal.
	TerminalObserved bool
}

type finalState struct {
	Chunks           int  `json:"chunks"`
	Dropped          int  `json:"dropped"`
	TerminalObserved bool `json:"terminalObserved"`
}

// Relay pipes an upstream SSE stream through a Translator into an Encoder,
// reporting agent events to a sink as it goes.
type Relay struct {
	translator Translator
	sink       EventSink
	logger     *slog.Logger
}

// NewRelay creates a Relay. A nil sink discards agent events.
func NewRelay(tr Translator, sink EventSink, logger *slog.Logger) *Relay {
	if sink == nil {
		sink = nopSink{}
	}
	return &Relay{translator: tr, sink: sink, logger: logger}
}

// Run relays src to enc until upstream signals completion, src is exhausted
// or ctx is done. The conversationId frame is written first and the encoder
// is always closed, so the client sees exactly one end frame even when the
// upstream read fails.
func (r *Relay) Run(ctx context.Context, src io.Reader, enc *Encoder, meta StreamMeta) (*Summary, error) {
	summary := &Summary{ConversationID: meta.ConversationID, AgentID: meta.AgentID}
	agentID := meta.AgentID
	convID := meta.ConversationID

	logger := r.logger.With("conversation_id", convID)

	r.sink.SaveEvent(ctx, agent.Start{Agent: agentID, Name: meta.AgentName}, convID)

	var content strings.Builder
	streamErr := r.relay(ctx, src, enc, logger, summary, &agentID, &content)

	summary.Content = content.String()
	summary.AgentID = agentID

	if err := enc.Close(); err != nil && streamErr == nil {
		streamErr = fmt.Errorf("writing end frame: %w", err)
	}

	if streamErr != nil {
		if IsClientGone(streamErr) {
			logger.Info("client disconnected mid-stream", "agent_id", agentID)
		} else {
			logger.Error("stream relay failed", "agent_id", agentID, "error", streamErr)
		}
		r.sink.SaveEvent(ctx, agent.Error{Agent: agentID, Message: streamErr.Error()}, convID)
	} else {
		state, _ := json.Marshal(finalState{
			Chunks:           summary.Chunks,
			Dropped:          summary.Dropped,
			TerminalObserved: summary.TerminalObserved,
		})
		r.sink.SaveEvent(ctx, agent.Complete{Agent: agentID, FinalState: state}, convID)
	}
	r.sink.SaveEvent(ctx, agent.ConversationEnd{}, convID)

	logger.Debug("stream relayed",
		"agent_id", agentID,
		"chunks", summary.Chunks,
		"dropped", summary.Dropped,
		"terminal_observed", summary.TerminalObserved,
	)

	return summary, streamErr
}

func (r *Relay) relay(ctx context.Context, src io.Reader, enc *Encoder, logger *slog.Logger, summary *Summary, agentID *string, content *strings.Builder) error {
	convID := summary.ConversationID

	if err := enc.ConversationID(convID); err != nil {
		return fmt.Errorf("writing conversation id: %w", err)
	}

	reader := sse.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := reader.Next()
		if err != nil {
			return fmt.Errorf("reading upstream stream: %w", err)
		}
		if f == nil {
			return nil
		}
		if f.Partial {
			logger.Warn("upstream ended mid-frame", "data", utils.Truncate(f.Data, 64))
		}

		tr := r.translator.Translate(*f)
		if tr.Err != nil {
			logger.Warn("translating upstream frame",
				"kind", tr.Kind.String(),
				"event", f.Type,
				"error", tr.Err,
			)
		}

		switch tr.Kind {
		case KindContent:
			if err := enc.WriteFrame(*tr.Frame); err != nil {
				return fmt.Errorf("writing chunk: %w", err)
			}
			summary.Chunks++
			content.WriteString(tr.Content)
			r.sink.SaveEvent(ctx, agent.ContentChunk{Agent: *agentID, Content: tr.Content}, convID)

		case KindTerminal, KindPassThrough:
			summary.TerminalObserved = true
			if err := enc.WriteFrame(*tr.Frame); err != nil {
				return fmt.Errorf("writing end frame: %w", err)
			}
			return nil

		case KindToolStart:
			r.sink.SaveEvent(ctx, agent.ToolExecution{Agent: *agentID, ToolName: tr.ToolName}, convID)

		case KindToolResult:
			r.sink.SaveEvent(ctx, agent.ToolResult{Agent: *agentID, ToolName: tr.ToolName, Result: tr.ToolResult}, convID)

		case KindAgentSwitch:
			from := tr.FromAgent
			if from == "" {
				from = *agentID
			}
			r.sink.SaveEvent(ctx, agent.Switch{FromAgent: from, ToAgent: tr.ToAgent, Reason: tr.Reason}, convID)
			if tr.ToAgent != "" {
				*agentID = tr.ToAgent
			}

		case KindDropped:
			summary.Dropped++
		}
	}
}

// IsClientGone reports whether err comes from a client that stopped reading.
func IsClientGone(err error) bool {
	return errors.Is(err, io.ErrClosedPipe)
}

type nopSink struct{}

func (nopSink) SaveEvent(context.Context, agent.Event, string) {}
