// Package inmemory provides a storage.Driver backed by process memory.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

type agentDataKey struct {
	conversationID string
	agentID        string
	dataType       string
}

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	// messages and interactions are kept per conversation in insertion order
	messages     map[string][]*storage.Message
	interactions map[string][]*storage.Interaction

	agentData map[agentDataKey]*storage.AgentData

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		messages:     make(map[string][]*storage.Message),
		interactions: make(map[string][]*storage.Interaction),
		agentData:    make(map[agentDataKey]*storage.AgentData),
		now:          time.Now,
	}
}

// SaveMessage stores a copy of m.
func (d *Driver) SaveMessage(_ context.Context, m *storage.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}
	storage.PrepareMessage(m, d.now())

	stored := *m
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages[m.ConversationID] = append(d.messages[m.ConversationID], &stored)
	return nil
}

// ListMessages returns copies of a conversation's messages, oldest first.
func (d *Driver) ListMessages(_ context.Context, conversationID string) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Message, 0, len(d.messages[conversationID]))
	for _, m := range d.messages[conversationID] {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

// SaveInteraction stores a copy of i.
func (d *Driver) SaveInteraction(_ context.Context, i *storage.Interaction) error {
	if i == nil {
		return errors.New("cannot store nil interaction")
	}
	storage.PrepareInteraction(i, d.now())

	stored := *i
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interactions[i.ConversationID] = append(d.interactions[i.ConversationID], &stored)
	return nil
}

// ListInteractions returns copies of a conversation's interactions, oldest
// first.
func (d *Driver) ListInteractions(_ context.Context, conversationID string) ([]*storage.Interaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Interaction, 0, len(d.interactions[conversationID]))
	for _, i := range d.interactions[conversationID] {
		c := *i
		out = append(out, &c)
	}
	return out, nil
}

// UpsertAgentData stores a copy of ad, replacing any entry with the same key.
func (d *Driver) UpsertAgentData(_ context.Context, ad *storage.AgentData) error {
	if ad == nil {
		return errors.New("cannot store nil agent data")
	}

	stored := *ad
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = d.now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.agentData[agentDataKey{ad.ConversationID, ad.AgentID, ad.DataType}] = &stored
	return nil
}

// GetAgentData returns a copy of the stored entry.
func (d *Driver) GetAgentData(_ context.Context, conversationID, agentID, dataType string) (*storage.AgentData, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ad, ok := d.agentData[agentDataKey{conversationID, agentID, dataType}]
	if !ok {
		return nil, storage.NotFoundError{
			Kind: "agent data",
			Key:  storage.AgentDataKey(conversationID, agentID, dataType),
		}
	}
	c := *ad
	return &c, nil
}

// DeleteExpiredAgentData removes entries expired at now.
func (d *Driver) DeleteExpiredAgentData(_ context.Context, now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int64
	for k, ad := range d.agentData {
		if ad.Expired(now) {
			delete(d.agentData, k)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
