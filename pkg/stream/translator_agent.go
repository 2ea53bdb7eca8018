package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/tapestream/pkg/sse"
)

// agentFrame is the payload of a native agent runtime frame. Token content
// arrives either at the top level or nested under data.
type agentFrame struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
	Data    *struct {
		Content *string `json:"content"`
	} `json:"data"`

	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result"`

	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type agentTranslator struct{}

func (agentTranslator) Translate(f sse.Frame) Translation {
	var payload agentFrame
	parseErr := json.Unmarshal([]byte(f.Data), &payload)

	typ := f.Type
	if typ == "" || typ == "message" {
		typ = payload.Type
	}

	if parseErr != nil {
		if typ == "token" {
			return rawContent(f.Data, fmt.Errorf("parsing token frame: %w", parseErr))
		}
		return dropped(fmt.Errorf("parsing %q frame: %w", f.Type, parseErr))
	}

	switch typ {
	case "token":
		switch {
		case payload.Content != nil:
			return content(*payload.Content)
		case payload.Data != nil && payload.Data.Content != nil:
			return content(*payload.Data.Content)
		default:
			return dropped(errors.New("token frame has no content"))
		}
	case "complete", "done":
		return terminal()
	case "tool_start":
		return Translation{Kind: KindToolStart, ToolName: payload.Tool}
	case "tool_end":
		return Translation{Kind: KindToolResult, ToolName: payload.Tool, ToolResult: payload.Result}
	case "agent_switch":
		return Translation{
			Kind:      KindAgentSwitch,
			FromAgent: payload.From,
			ToAgent:   payload.To,
			Reason:    payload.Reason,
		}
	default:
		return dropped(nil)
	}
}
