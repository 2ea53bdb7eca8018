package stream

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/tapestream/pkg/sse"
)

const (
	// ProviderAgent is the native agent runtime, which streams typed
	// token / tool / switch / complete frames.
	ProviderAgent = "agent"

	// ProviderOpenAI is the OpenAI chat completions stream.
	ProviderOpenAI = "openai"

	// ProviderAnthropic is the Anthropic messages stream.
	ProviderAnthropic = "anthropic"
)

// Kind classifies the outcome of translating one upstream frame.
type Kind int

const (
	// KindDropped frames produce nothing on the wire.
	KindDropped Kind = iota

	// KindContent frames produce one chunk frame.
	KindContent

	// KindTerminal frames signal upstream completion and produce the end frame.
	KindTerminal

	// KindPassThrough frames are already outbound end frames and are forwarded
	// unchanged.
	KindPassThrough

	// KindToolStart, KindToolResult and KindAgentSwitch are dropped from the
	// wire but carry details for the agent event sequence.
	KindToolStart
	KindToolResult
	KindAgentSwitch
)

func (k Kind) String() string {
	switch k {
	case KindDropped:
		return "dropped"
	case KindContent:
		return "content"
	case KindTerminal:
		return "terminal"
	case KindPassThrough:
		return "pass_through"
	case KindToolStart:
		return "tool_start"
	case KindToolResult:
		return "tool_result"
	case KindAgentSwitch:
		return "agent_switch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Translation is the result of translating one upstream frame.
type Translation struct {
	Kind Kind

	// Frame is the outbound frame, nil when nothing is forwarded.
	Frame *sse.Frame

	// Content is the decoded text of a KindContent translation.
	Content string

	ToolName   string
	ToolResult json.RawMessage

	FromAgent string
	ToAgent   string
	Reason    string

	// Err records a non-fatal problem with the upstream frame, e.g. malformed
	// JSON that was forwarded raw.
	Err error
}

// Terminal reports whether the translation ends the stream.
func (t Translation) Terminal() bool {
	return t.Kind == KindTerminal || t.Kind == KindPassThrough
}

// Translator converts upstream frames into outbound frames. It returns zero
// or one outbound frame per input frame.
type Translator interface {
	Translate(f sse.Frame) Translation
}

// NewTranslator returns the Translator for the named upstream provider.
func NewTranslator(provider string) (Translator, error) {
	var tr Translator
	switch provider {
	case ProviderAgent:
		tr = agentTranslator{}
	case ProviderOpenAI:
		tr = openAITranslator{}
	case ProviderAnthropic:
		tr = anthropicTranslator{}
	default:
		return nil, fmt.Errorf("unknown stream provider: %q", provider)
	}
	return passThroughEnd{next: tr}, nil
}

// passThroughEnd forwards frames that are already in outbound end shape.
type passThroughEnd struct {
	next Translator
}

func (p passThroughEnd) Translate(f sse.Frame) Translation {
	if f.Type == EventEnd {
		out := f
		return Translation{Kind: KindPassThrough, Frame: &out}
	}
	return p.next.Translate(f)
}

func content(text string) Translation {
	return Translation{
		Kind:    KindContent,
		Content: text,
		Frame:   &sse.Frame{Type: EventChunk, Data: EncodeChunk(text)},
	}
}

// rawContent forwards an unparseable token payload unencoded so no content
// is lost.
func rawContent(data string, err error) Translation {
	return Translation{
		Kind:    KindContent,
		Content: data,
		Frame:   &sse.Frame{Type: EventChunk, Data: data},
		Err:     err,
	}
}

func terminal() Translation {
	return Translation{
		Kind:  KindTerminal,
		Frame: &sse.Frame{Type: EventEnd, Data: EndPayload},
	}
}

func dropped(err error) Translation {
	return Translation{Kind: KindDropped, Err: err}
}
