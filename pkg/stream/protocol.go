// Package stream implements the simplified wire protocol spoken between the
// tapestream proxy and its thin clients, along with the pieces that produce
// it: per-provider translators for upstream frames, an encoder that
// guarantees a single terminal frame, and a relay that ties both to a typed
// agent event sink.
//
// Every stream is a sequence of SSE frames:
//
//	event: conversationId    data: <raw identifier>
//	event: chunk             data: <JSON string literal>
//	event: end               data: {}
//
// The end frame appears exactly once per stream.
package stream

import (
	"encoding/json"
)

const (
	// EventConversationID assigns or confirms the conversation of the stream.
	EventConversationID = "conversationId"

	// EventChunk carries one increment of output text encoded as a JSON
	// string literal.
	EventChunk = "chunk"

	// EventEnd is the terminal frame.
	EventEnd = "end"

	// EndPayload is the data of every end frame.
	EndPayload = "{}"
)

// EncodeChunk encodes content as a JSON string literal so that newlines,
// quotes and control characters survive the line-oriented framing.
func EncodeChunk(content string) string {
	b, err := json.Marshal(content)
	if err != nil {
		// unreachable: invalid UTF-8 is replaced, not rejected
		return content
	}
	return string(b)
}

// DecodeChunk recovers the original text from a chunk payload. Payloads that
// are not a JSON string literal are returned unchanged.
func DecodeChunk(payload string) string {
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return payload
	}
	return s
}
