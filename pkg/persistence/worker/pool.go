// Package worker provides an asynchronous worker pool that writes persisted
// records to a storage.Driver and announces them on an event stream.
//
// The pool decouples datastore writes from the live stream so that a slow or
// failing datastore degrades durability, never the latency of what the client
// sees.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
	"github.com/papercomputeco/tapestream/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool. Exactly one of Message and
// Interaction is set.
type Job struct {
	Message     *storage.Message
	Interaction *storage.Interaction
}

func (j Job) conversationID() string {
	switch {
	case j.Message != nil:
		return j.Message.ConversationID
	case j.Interaction != nil:
		return j.Interaction.ConversationID
	}
	return ""
}

func (j Job) kind() string {
	switch {
	case j.Message != nil:
		return "message"
	case j.Interaction != nil:
		return "interaction"
	}
	return "empty"
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher is the optional event stream notified after each write.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Stats are cumulative pool counters.
type Stats struct {
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
	Written  uint64 `json:"written"`
	Failed   uint64 `json:"failed"`
}

// Pool processes storage jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// closeMu guards closed and the queue close against concurrent Enqueue.
	closeMu sync.RWMutex
	closed  bool

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool. It never blocks:
// it returns false, dropping the job, when the queue is full or the pool is
// closed.
func (p *Pool) Enqueue(job Job) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("job not queued, pool closed, job dropped",
			"kind", job.kind(),
			"conversation_id", job.conversationID(),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.enqueued.Add(1)
		p.logger.Debug("job queued",
			"kind", job.kind(),
			"conversation_id", job.conversationID(),
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("job not queued, queue full, job dropped",
			"kind", job.kind(),
			"conversation_id", job.conversationID(),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Calling Close more than once is safe.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	p.wg.Wait()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Enqueued: p.enqueued.Load(),
		Dropped:  p.dropped.Load(),
		Written:  p.written.Load(),
		Failed:   p.failed.Load(),
	}
}

// worker is the inner worker loop that continuously pulls jobs off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob writes the job's record and then publishes it. Failures are
// logged and counted, never returned.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	event, err := p.store(ctx, job)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("async record storage failed",
			"kind", job.kind(),
			"conversation_id", job.conversationID(),
			"error", err,
		)
		return
	}
	p.written.Add(1)

	if p.config.Publisher == nil || event == nil {
		return
	}

	if err := p.config.Publisher.PublishRecord(ctx, event); err != nil {
		p.logger.Warn("failed to publish record event",
			"event_type", event.EventType,
			"conversation_id", event.ConversationID,
			"error", err,
		)
	}
}

func (p *Pool) store(ctx context.Context, job Job) (*eventstream.RecordPersistedEvent, error) {
	switch {
	case job.Message != nil:
		if err := p.config.Driver.SaveMessage(ctx, job.Message); err != nil {
			return nil, fmt.Errorf("storing message: %w", err)
		}
		p.logger.Debug("stored message",
			"id", job.Message.ID,
			"conversation_id", job.Message.ConversationID,
			"agent_id", job.Message.AgentID,
			"role", job.Message.Role,
		)
		return eventstream.NewMessageEvent(job.Message, time.Now()), nil

	case job.Interaction != nil:
		if err := p.config.Driver.SaveInteraction(ctx, job.Interaction); err != nil {
			return nil, fmt.Errorf("storing interaction: %w", err)
		}
		p.logger.Debug("stored interaction",
			"id", job.Interaction.ID,
			"conversation_id", job.Interaction.ConversationID,
			"action_type", job.Interaction.ActionType,
		)
		return eventstream.NewInteractionEvent(job.Interaction, time.Now()), nil
	}

	return nil, errors.New("empty job")
}
