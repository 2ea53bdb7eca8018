package config

const (
	defaultProvider     = "agent"
	defaultUpstream     = "http://localhost:9000"
	defaultUpstreamPath = "/v1/agent/stream"
	defaultAgent        = "assistant"
	defaultProxyListen  = ":8080"
	defaultAPIListen    = ":8081"

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultFlushDelay      = "2s"
	defaultWorkers         = 3
	defaultQueueSize       = 256
	defaultCleanupInterval = "5m"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "tapestream.records"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Provider:     defaultProvider,
			Upstream:     defaultUpstream,
			UpstreamPath: defaultUpstreamPath,
			Agent:        defaultAgent,
			Listen:       defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		Persistence: PersistenceConfig{
			FlushDelay:      defaultFlushDelay,
			Workers:         defaultWorkers,
			QueueSize:       defaultQueueSize,
			CleanupInterval: defaultCleanupInterval,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
