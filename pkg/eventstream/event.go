// Package eventstream defines the notifications emitted after a record has
// been written to the datastore, and the Publisher interface that backends
// implement.
package eventstream

import (
	"time"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessagePersisted is emitted after a message record is written.
	EventTypeMessagePersisted = "tapestream.message.persisted"

	// EventTypeInteractionPersisted is emitted after an interaction record is written.
	EventTypeInteractionPersisted = "tapestream.interaction.persisted"
)

// RecordPersistedEvent is a transport-neutral payload for a persisted record.
// Exactly one of Message and Interaction is set, matching EventType.
type RecordPersistedEvent struct {
	SchemaVersion  int                  `json:"schema_version"`
	EventType      string               `json:"event_type"`
	EventID        string               `json:"event_id"`
	EmittedAt      time.Time            `json:"emitted_at"`
	ConversationID string               `json:"conversation_id"`
	Message        *storage.Message     `json:"message,omitempty"`
	Interaction    *storage.Interaction `json:"interaction,omitempty"`
}

// NewMessageEvent wraps a persisted message.
func NewMessageEvent(m *storage.Message, now time.Time) *RecordPersistedEvent {
	return &RecordPersistedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeMessagePersisted,
		EventID:        storage.NewID(),
		EmittedAt:      now.UTC(),
		ConversationID: m.ConversationID,
		Message:        m,
	}
}

// NewInteractionEvent wraps a persisted interaction.
func NewInteractionEvent(i *storage.Interaction, now time.Time) *RecordPersistedEvent {
	return &RecordPersistedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeInteractionPersisted,
		EventID:        storage.NewID(),
		EmittedAt:      now.UTC(),
		ConversationID: i.ConversationID,
		Interaction:    i,
	}
}
