package persistence

import (
	"sync"
	"time"
)

// State is the producer-side lifecycle of a conversation's current stream.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

type streamState struct {
	state State
	since time.Time
}

type stateTable struct {
	mu     sync.Mutex
	states map[string]*streamState
}

func newStateTable() *stateTable {
	return &stateTable{states: make(map[string]*streamState)}
}

func (t *stateTable) get(conversationID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[conversationID]; ok {
		return s.state
	}
	return StateIdle
}

// reset puts conversationID back to idle for a new turn.
func (t *stateTable) reset(conversationID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[conversationID] = &streamState{state: StateIdle, since: now}
}

// advance moves conversationID to next unless it is already ended. It
// reports false when the stream had ended, leaving the state untouched.
func (t *stateTable) advance(conversationID string, next State, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[conversationID]
	if !ok {
		s = &streamState{state: StateIdle, since: now}
		t.states[conversationID] = s
	}
	if s.state == StateEnded {
		return false
	}
	if s.state < next {
		s.state = next
		s.since = now
	}
	return true
}

// pruneEnded forgets ended streams that ended at or before cutoff.
func (t *stateTable) pruneEnded(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, s := range t.states {
		if s.state == StateEnded && !s.since.After(cutoff) {
			delete(t.states, id)
			n++
		}
	}
	return n
}

func (t *stateTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
