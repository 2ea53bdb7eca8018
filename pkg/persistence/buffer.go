package persistence

import (
	"strings"
	"sync"
	"time"
)

// Key identifies a stream buffer.
type Key struct {
	ConversationID string
	AgentID        string
}

type buffer struct {
	content   strings.Builder
	createdAt time.Time
	lastWrite time.Time
}

// bufferMap is the process-wide set of open stream buffers.
type bufferMap struct {
	mu      sync.Mutex
	buffers map[Key]*buffer
}

func newBufferMap() *bufferMap {
	return &bufferMap{buffers: make(map[Key]*buffer)}
}

// appendChunk appends content to the buffer for key, creating it when absent.
// It reports whether the buffer was created by this call. schedule is called
// once per created buffer, under the lock.
func (m *bufferMap) appendChunk(key Key, content string, now time.Time, schedule func(*buffer)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buffers[key]
	if !ok {
		b = &buffer{createdAt: now}
		schedule(b)
		m.buffers[key] = b
	}
	b.content.WriteString(content)
	b.lastWrite = now

	return !ok
}

// take removes and returns the buffer for key, or nil when it is absent.
// A non-nil owner restricts the take to that exact buffer, so a timer
// scheduled for a buffer that was already flushed cannot take its successor.
func (m *bufferMap) take(key Key, owner *buffer) *buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buffers[key]
	if !ok || (owner != nil && b != owner) {
		return nil
	}
	delete(m.buffers, key)
	return b
}

// keys returns the keys of every open buffer matching conversationID, or of
// all buffers when conversationID is empty.
func (m *bufferMap) keys(conversationID string) []Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Key, 0, len(m.buffers))
	for k := range m.buffers {
		if conversationID == "" || k.ConversationID == conversationID {
			out = append(out, k)
		}
	}
	return out
}

func (m *bufferMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}
