// Package persistence records a live agent stream to a datastore without
// slowing it down. Content chunks are buffered per conversation and agent and
// written as one message after a fixed delay anchored to the buffer's first
// write; lifecycle, tool and error events become individual records. All
// writes go through a bounded worker pool and are never awaited by the
// stream.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tapestream/pkg/agent"
	"github.com/papercomputeco/tapestream/pkg/eventstream"
	"github.com/papercomputeco/tapestream/pkg/persistence/worker"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

const (
	// DefaultFlushDelay is how long a buffer collects chunks before it is
	// written, measured from its creation.
	DefaultFlushDelay = 2 * time.Second

	// EndedRetention is how long an ended stream state is remembered so that
	// late events can still be recognised as anomalies.
	EndedRetention = 10 * time.Minute
)

// Config is the configuration for a Persister.
type Config struct {
	// Driver stores messages and interactions, and agent data unless
	// AgentData is set.
	Driver storage.Driver

	// AgentData is an optional dedicated side store.
	AgentData storage.AgentDataStore

	Publisher eventstream.Publisher

	// Scheduler defaults to the wall clock.
	Scheduler Scheduler

	// FlushDelay defaults to DefaultFlushDelay.
	FlushDelay time.Duration

	Workers   uint
	QueueSize uint

	Logger *slog.Logger
}

// Stats are point-in-time persistence counters.
type Stats struct {
	OpenBuffers int          `json:"openBuffers"`
	Streams     int          `json:"streams"`
	Flushes     uint64       `json:"flushes"`
	Anomalies   uint64       `json:"anomalies"`
	Pool        worker.Stats `json:"pool"`
}

// Persister is the buffered event persistence layer. It is safe for
// concurrent use by any number of streams.
type Persister struct {
	pool       *worker.Pool
	agentData  storage.AgentDataStore
	scheduler  Scheduler
	flushDelay time.Duration
	logger     *slog.Logger

	buffers *bufferMap
	states  *stateTable

	flushes   atomic.Uint64
	anomalies atomic.Uint64
	closed    atomic.Bool
}

// New creates a Persister and starts its worker pool.
func New(c Config) (*Persister, error) {
	if c.Driver == nil {
		return nil, errors.New("persistence requires a storage driver")
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Scheduler == nil {
		c.Scheduler = SystemScheduler{}
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = DefaultFlushDelay
	}
	if c.AgentData == nil {
		c.AgentData = c.Driver
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:     c.Driver,
		Publisher:  c.Publisher,
		NumWorkers: c.Workers,
		QueueSize:  c.QueueSize,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Persister{
		pool:       pool,
		agentData:  c.AgentData,
		scheduler:  c.Scheduler,
		flushDelay: c.FlushDelay,
		logger:     c.Logger,
		buffers:    newBufferMap(),
		states:     newStateTable(),
	}, nil
}

// OpenStream starts a new turn for conversationID, returning its state to
// idle so that a conversation that ended earlier can stream again.
func (p *Persister) OpenStream(conversationID string) {
	p.states.reset(conversationID, p.scheduler.Now())
}

// State returns the current stream state of conversationID.
func (p *Persister) State(conversationID string) State {
	return p.states.get(conversationID)
}

// SaveEvent records ev for conversationID. It never blocks on the datastore
// and never fails: persistence problems are logged.
func (p *Persister) SaveEvent(_ context.Context, ev agent.Event, conversationID string) {
	if ev == nil {
		return
	}

	next := StateIdle
	switch ev.Type() {
	case agent.TypeContentChunk:
		next = StateStreaming
	case agent.TypeConversationEnd:
		next = StateEnded
	}

	if !p.states.advance(conversationID, next, p.scheduler.Now()) {
		p.anomalies.Add(1)
		p.logger.Warn("event after stream ended, ignoring",
			"conversation_id", conversationID,
			"event_type", string(ev.Type()),
			"agent_id", ev.AgentID(),
		)
		return
	}

	ev.Accept(&recorder{p: p, conversationID: conversationID})
}

// Flush writes the buffer for key as one assistant message and removes it.
// It reports whether a buffer was present; flushing an absent key is a
// silent no-op.
func (p *Persister) Flush(key Key) bool {
	return p.flush(key, nil)
}

// flush writes the buffer for key. With a non-nil owner only that buffer is
// flushed; the flush timer passes the buffer it was scheduled for and is a
// no-op once that buffer is gone.
func (p *Persister) flush(key Key, owner *buffer) bool {
	b := p.buffers.take(key, owner)
	if b == nil {
		return false
	}
	p.flushes.Add(1)

	content := b.content.String()
	if content == "" {
		return true
	}

	p.logger.Debug("flushing stream buffer",
		"conversation_id", key.ConversationID,
		"agent_id", key.AgentID,
		"bytes", len(content),
		"preview", utils.Truncate(content, 60),
		"age", b.lastWrite.Sub(b.createdAt),
	)

	p.enqueue(worker.Job{Message: &storage.Message{
		ID:             storage.NewID(),
		ConversationID: key.ConversationID,
		AgentID:        key.AgentID,
		Role:           storage.RoleAssistant,
		Content:        content,
		CreatedAt:      b.createdAt.UTC(),
	}})
	return true
}

// FlushConversation flushes every open buffer of conversationID.
func (p *Persister) FlushConversation(conversationID string) int {
	n := 0
	for _, k := range p.buffers.keys(conversationID) {
		if p.Flush(k) {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the persistence counters.
func (p *Persister) Stats() Stats {
	return Stats{
		OpenBuffers: p.buffers.len(),
		Streams:     p.states.len(),
		Flushes:     p.flushes.Load(),
		Anomalies:   p.anomalies.Load(),
		Pool:        p.pool.Stats(),
	}
}

// Close flushes every open buffer and waits for queued writes to drain.
func (p *Persister) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, k := range p.buffers.keys("") {
		p.Flush(k)
	}
	p.pool.Close()
	return nil
}

func (p *Persister) now() time.Time {
	return p.scheduler.Now().UTC()
}

func (p *Persister) enqueue(job worker.Job) {
	p.pool.Enqueue(job)
}

func (p *Persister) appendChunk(conversationID, agentID, content string) {
	key := Key{ConversationID: conversationID, AgentID: agentID}
	created := p.buffers.appendChunk(key, content, p.scheduler.Now(), func(b *buffer) {
		p.scheduler.AfterFunc(p.flushDelay, func() { p.flush(key, b) })
	})
	if created {
		p.logger.Debug("stream buffer opened",
			"conversation_id", conversationID,
			"agent_id", agentID,
			"flush_delay", p.flushDelay,
		)
	}
}

func (p *Persister) saveInteraction(i *storage.Interaction) {
	i.ID = storage.NewID()
	i.CreatedAt = p.now()
	p.enqueue(worker.Job{Interaction: i})
}

func (p *Persister) saveMessage(m *storage.Message) {
	m.ID = storage.NewID()
	m.CreatedAt = p.now()
	p.enqueue(worker.Job{Message: m})
}

// recorder maps each agent event onto buffers and records.
type recorder struct {
	p              *Persister
	conversationID string
}

func (r *recorder) VisitContentChunk(e agent.ContentChunk) {
	r.p.appendChunk(r.conversationID, e.Agent, e.Content)
}

func (r *recorder) VisitStart(e agent.Start) {
	var snapshot json.RawMessage
	if e.Name != "" {
		snapshot, _ = json.Marshal(map[string]string{"name": e.Name})
	}
	r.p.saveInteraction(&storage.Interaction{
		ConversationID: r.conversationID,
		AgentID:        e.Agent,
		ActionType:     storage.ActionStart,
		StateSnapshot:  snapshot,
	})
}

func (r *recorder) VisitSwitch(e agent.Switch) {
	r.p.saveInteraction(&storage.Interaction{
		ConversationID: r.conversationID,
		AgentID:        e.ToAgent,
		ActionType:     storage.ActionSwitch,
		FromAgent:      e.FromAgent,
		Reason:         e.Reason,
	})
}

func (r *recorder) VisitToolExecution(e agent.ToolExecution) {
	r.p.saveMessage(&storage.Message{
		ConversationID: r.conversationID,
		AgentID:        e.Agent,
		Role:           storage.RoleTool,
		ToolName:       e.ToolName,
		Status:         storage.StatusStarted,
	})
}

func (r *recorder) VisitToolResult(e agent.ToolResult) {
	var metadata json.RawMessage
	if len(e.Result) > 0 {
		var err error
		metadata, err = json.Marshal(struct {
			Result json.RawMessage `json:"result"`
		}{e.Result})
		if err != nil {
			r.p.logger.Warn("tool result is not valid JSON, storing as text",
				"conversation_id", r.conversationID,
				"tool", e.ToolName,
				"error", err,
			)
			metadata, _ = json.Marshal(map[string]string{"result": string(e.Result)})
		}
	}
	r.p.saveMessage(&storage.Message{
		ConversationID: r.conversationID,
		AgentID:        e.Agent,
		Role:           storage.RoleTool,
		ToolName:       e.ToolName,
		Status:         storage.StatusCompleted,
		Metadata:       metadata,
	})
}

func (r *recorder) VisitComplete(e agent.Complete) {
	r.p.Flush(Key{ConversationID: r.conversationID, AgentID: e.Agent})
	r.p.saveInteraction(&storage.Interaction{
		ConversationID: r.conversationID,
		AgentID:        e.Agent,
		ActionType:     storage.ActionComplete,
		StateSnapshot:  e.FinalState,
	})
}

func (r *recorder) VisitError(e agent.Error) {
	r.p.Flush(Key{ConversationID: r.conversationID, AgentID: e.Agent})
	r.p.saveMessage(&storage.Message{
		ConversationID: r.conversationID,
		AgentID:        e.Agent,
		Role:           storage.RoleSystem,
		Content:        e.Message,
		Status:         storage.StatusError,
	})
}

func (r *recorder) VisitConversationEnd(agent.ConversationEnd) {
	r.p.FlushConversation(r.conversationID)
	r.p.saveInteraction(&storage.Interaction{
		ConversationID: r.conversationID,
		ActionType:     storage.ActionConversationEnd,
	})
}
