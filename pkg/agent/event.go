// Package agent defines the typed events emitted while an agent produces a
// streamed response. Event is a closed union: only the variants declared here
// implement it, and Visitor has one method per variant so that adding a
// variant breaks every visitor until it is handled.
package agent

import "encoding/json"

// Type identifies an Event variant.
type Type string

const (
	TypeStart           Type = "agent_start"
	TypeSwitch          Type = "agent_switch"
	TypeContentChunk    Type = "content_chunk"
	TypeToolExecution   Type = "tool_execution"
	TypeToolResult      Type = "tool_result"
	TypeComplete        Type = "agent_complete"
	TypeError           Type = "error"
	TypeConversationEnd Type = "conversation_end"
)

// Event is one meaningful occurrence in an agent's stream.
type Event interface {
	Type() Type

	// AgentID is the agent the event is attributed to. It is empty for
	// ConversationEnd, and the target agent for Switch.
	AgentID() string

	Accept(v Visitor)

	isEvent()
}

// Visitor handles every Event variant.
type Visitor interface {
	VisitStart(Start)
	VisitSwitch(Switch)
	VisitContentChunk(ContentChunk)
	VisitToolExecution(ToolExecution)
	VisitToolResult(ToolResult)
	VisitComplete(Complete)
	VisitError(Error)
	VisitConversationEnd(ConversationEnd)
}

type Start struct {
	Agent string `json:"agentId"`
	Name  string `json:"name"`
}

type Switch struct {
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
	Reason    string `json:"reason,omitempty"`
}

type ContentChunk struct {
	Agent   string `json:"agentId"`
	Content string `json:"content"`
}

type ToolExecution struct {
	Agent    string `json:"agentId"`
	ToolName string `json:"toolName"`
}

type ToolResult struct {
	Agent    string          `json:"agentId"`
	ToolName string          `json:"toolName"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// Complete marks the end of one agent's contribution. FinalState is an
// optional snapshot recorded with the interaction.
type Complete struct {
	Agent      string          `json:"agentId"`
	FinalState json.RawMessage `json:"finalState,omitempty"`
}

type Error struct {
	Agent   string `json:"agentId"`
	Message string `json:"message"`
}

type ConversationEnd struct{}

func (Start) Type() Type           { return TypeStart }
func (Switch) Type() Type          { return TypeSwitch }
func (ContentChunk) Type() Type    { return TypeContentChunk }
func (ToolExecution) Type() Type   { return TypeToolExecution }
func (ToolResult) Type() Type      { return TypeToolResult }
func (Complete) Type() Type        { return TypeComplete }
func (Error) Type() Type           { return TypeError }
func (ConversationEnd) Type() Type { return TypeConversationEnd }

func (e Start) AgentID() string         { return e.Agent }
func (e Switch) AgentID() string        { return e.ToAgent }
func (e ContentChunk) AgentID() string  { return e.Agent }
func (e ToolExecution) AgentID() string { return e.Agent }
func (e ToolResult) AgentID() string    { return e.Agent }
func (e Complete) AgentID() string      { return e.Agent }
func (e Error) AgentID() string         { return e.Agent }
func (ConversationEnd) AgentID() string { return "" }

func (e Start) Accept(v Visitor)           { v.VisitStart(e) }
func (e Switch) Accept(v Visitor)          { v.VisitSwitch(e) }
func (e ContentChunk) Accept(v Visitor)    { v.VisitContentChunk(e) }
func (e ToolExecution) Accept(v Visitor)   { v.VisitToolExecution(e) }
func (e ToolResult) Accept(v Visitor)      { v.VisitToolResult(e) }
func (e Complete) Accept(v Visitor)        { v.VisitComplete(e) }
func (e Error) Accept(v Visitor)           { v.VisitError(e) }
func (e ConversationEnd) Accept(v Visitor) { v.VisitConversationEnd(e) }

func (Start) isEvent()           {}
func (Switch) isEvent()          {}
func (ContentChunk) isEvent()    {}
func (ToolExecution) isEvent()   {}
func (ToolResult) isEvent()      {}
func (Complete) isEvent()        {}
func (Error) isEvent()           {}
func (ConversationEnd) isEvent() {}

// IsTerminal reports whether the event ends an agent's buffered output.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Complete, Error, ConversationEnd:
		return true
	default:
		return false
	}
}
