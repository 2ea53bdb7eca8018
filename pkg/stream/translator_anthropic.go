package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/tapestream/pkg/sse"
)

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"content_block"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicTranslator struct{}

func (anthropicTranslator) Translate(f sse.Frame) Translation {
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
		if f.Type == "content_block_delta" {
			return rawContent(f.Data, fmt.Errorf("parsing content block delta: %w", err))
		}
		return dropped(fmt.Errorf("parsing %q event: %w", f.Type, err))
	}

	typ := ev.Type
	if typ == "" {
		typ = f.Type
	}

	switch typ {
	case "content_block_delta":
		if (ev.Delta.Type != "" && ev.Delta.Type != "text_delta") || ev.Delta.Text == "" {
			return dropped(nil)
		}
		return content(ev.Delta.Text)
	case "content_block_start":
		if ev.ContentBlock.Type == "tool_use" {
			return Translation{Kind: KindToolStart, ToolName: ev.ContentBlock.Name}
		}
		return dropped(nil)
	case "message_stop":
		return terminal()
	case "error":
		return dropped(errors.New("upstream error: " + ev.Error.Message))
	default:
		return dropped(nil)
	}
}
