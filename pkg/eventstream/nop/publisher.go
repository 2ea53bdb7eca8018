// Package nop provides the publisher used when no event stream is
// configured. It drops events and only counts them.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
)

type Publisher struct {
	dropped atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishRecord rejects nil events and discards the rest.
func (p *Publisher) PublishRecord(_ context.Context, event *eventstream.RecordPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilRecordEvent
	}
	p.dropped.Add(1)
	return nil
}

// Dropped is the number of events discarded so far.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
