package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Interaction action types.
const (
	ActionStart           = "start"
	ActionSwitch          = "switch"
	ActionComplete        = "complete"
	ActionConversationEnd = "conversation_end"
)

// Message is one persisted piece of a conversation: flushed assistant
// content, a tool call or result, or an error.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	AgentID        string          `json:"agentId,omitempty"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	ToolName       string          `json:"toolName,omitempty"`
	Status         string          `json:"status,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Interaction records an agent lifecycle transition.
type Interaction struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	AgentID        string          `json:"agentId"`
	ActionType     string          `json:"actionType"`
	FromAgent      string          `json:"fromAgent,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	StateSnapshot  json.RawMessage `json:"stateSnapshot,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// AgentData is an opaque value scoped to a conversation, an agent and a data
// type. It outlives individual streams until it is overwritten or expires.
type AgentData struct {
	ConversationID string          `json:"conversationId"`
	AgentID        string          `json:"agentId"`
	DataType       string          `json:"dataType"`
	Data           json.RawMessage `json:"data"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Expired reports whether the entry is past its expiration at now.
func (d *AgentData) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && !now.Before(*d.ExpiresAt)
}

// NewID returns a time-ordered record identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// PrepareMessage fills in the ID and creation time of m when unset.
func PrepareMessage(m *Message, now time.Time) {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
}

// PrepareInteraction fills in the ID and creation time of i when unset.
func PrepareInteraction(i *Interaction, now time.Time) {
	if i.ID == "" {
		i.ID = NewID()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
}
