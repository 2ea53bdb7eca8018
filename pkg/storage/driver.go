// Package storage defines the records tapestream persists and the driver
// interfaces that datastores implement.
package storage

import (
	"context"
	"time"
)

// MessageStore persists message records.
type MessageStore interface {
	// SaveMessage inserts m, assigning its ID and CreatedAt when unset.
	SaveMessage(ctx context.Context, m *Message) error

	// ListMessages returns a conversation's messages, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
}

// InteractionStore persists interaction records.
type InteractionStore interface {
	// SaveInteraction inserts i, assigning its ID and CreatedAt when unset.
	SaveInteraction(ctx context.Context, i *Interaction) error

	// ListInteractions returns a conversation's interactions, oldest first.
	ListInteractions(ctx context.Context, conversationID string) ([]*Interaction, error)
}

// AgentDataStore is the agent-scoped side store.
type AgentDataStore interface {
	// UpsertAgentData inserts d or replaces the entry with the same
	// conversation, agent and data type.
	UpsertAgentData(ctx context.Context, d *AgentData) error

	// GetAgentData returns the stored entry, expired or not, or a
	// NotFoundError.
	GetAgentData(ctx context.Context, conversationID, agentID, dataType string) (*AgentData, error)

	// DeleteExpiredAgentData deletes every entry whose expiration is at or
	// before now and returns how many were removed.
	DeleteExpiredAgentData(ctx context.Context, now time.Time) (int64, error)
}

// Driver is a complete datastore.
type Driver interface {
	MessageStore
	InteractionStore
	AgentDataStore

	// Close closes the store and releases any resources.
	Close() error
}

// AgentDataDriver is a datastore that only holds agent-scoped data.
type AgentDataDriver interface {
	AgentDataStore
	Close() error
}
