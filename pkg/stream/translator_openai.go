package stream

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/tapestream/pkg/sse"
)

const openAIDone = "[DONE]"

// openAIChunk is the subset of a chat.completion.chunk the translator reads.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAITranslator struct{}

func (openAITranslator) Translate(f sse.Frame) Translation {
	if f.Data == openAIDone {
		return terminal()
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(f.Data), &chunk); err != nil {
		return rawContent(f.Data, fmt.Errorf("parsing completion chunk: %w", err))
	}
	if len(chunk.Choices) == 0 {
		return dropped(nil)
	}

	delta := chunk.Choices[0].Delta
	if delta.Content != nil && *delta.Content != "" {
		return content(*delta.Content)
	}

	// Only the first delta of a tool call carries its name.
	for _, call := range delta.ToolCalls {
		if call.Function.Name != "" {
			return Translation{Kind: KindToolStart, ToolName: call.Function.Name}
		}
	}

	return dropped(nil)
}
