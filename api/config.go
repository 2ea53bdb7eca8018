// Package api is the read side of tapestream: persisted conversation
// records, the agent-scoped side store, maintenance and runtime stats.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Pprof mounts the net/http/pprof handlers under /debug/pprof.
	Pprof bool
}
