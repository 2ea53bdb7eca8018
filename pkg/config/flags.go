package config

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Kind is the value type of a registry flag.
type Kind int

const (
	KindString Kind = iota
	KindUint
	KindBool
)

// Flag describes one CLI flag. Commands name flags by registry key, and the
// name, shorthand, default and help text all come from here, so "serve",
// "serve proxy", "replay" and "chat" cannot disagree about them.
type Flag struct {
	Name      string
	Shorthand string

	// ViperKey is the dotted config key the flag overrides (e.g. "proxy.upstream").
	ViperKey string

	Kind        Kind
	Description string
}

// FlagSet maps registry keys to flags.
type FlagSet map[string]Flag

// Registry keys.
const (
	FlagProxyListen     = "proxy-listen"
	FlagAPIListen       = "api-listen"
	FlagUpstream        = "upstream"
	FlagUpstreamPath    = "upstream-path"
	FlagProvider        = "provider"
	FlagModel           = "model"
	FlagAgent           = "agent"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagRedis           = "redis"
	FlagPprof           = "pprof"
	FlagProxyTarget     = "proxy-target"
	FlagAPITarget       = "api-target"
	FlagFlushDelay      = "flush-delay"
	FlagWorkers         = "workers"
	FlagQueueSize       = "queue-size"
	FlagCleanupInterval = "cleanup-interval"
	FlagEventStreamProv = "eventstream-provider"
	FlagEventStreamBrk  = "eventstream-brokers"
	FlagEventStreamTpc  = "eventstream-topic"

	// The standalone servers call their listen address plain "listen".
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry of every flag used by tapestream commands.
var Flags = FlagSet{
	FlagProxyListen:           {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUpstream:              {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Upstream agent runtime or LLM provider URL"},
	FlagUpstreamPath:          {Name: "upstream-path", ViperKey: "proxy.upstream_path", Description: "Path of the upstream streaming endpoint"},
	FlagProvider:              {Name: "provider", ViperKey: "proxy.provider", Description: "Upstream stream dialect: agent, openai or anthropic"},
	FlagModel:                 {Name: "model", Shorthand: "m", ViperKey: "proxy.model", Description: "Model requested from openai or anthropic upstreams"},
	FlagAgent:                 {Name: "agent", ViperKey: "proxy.agent", Description: "Agent ID attributed to streams without an agent header"},
	FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string (takes precedence over --sqlite)"},
	FlagRedis:                 {Name: "redis", ViperKey: "storage.redis_addr", Description: "Redis address for agent-scoped data"},
	FlagPprof:                 {Name: "pprof", ViperKey: "api.pprof", Kind: KindBool, Description: "Expose /debug/pprof on the API server"},
	FlagProxyTarget:           {Name: "proxy-target", ViperKey: "client.proxy_target", Description: "Tapestream proxy URL"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "Tapestream API server URL"},
	FlagFlushDelay:            {Name: "flush-delay", ViperKey: "persistence.flush_delay", Description: "Delay from a buffer's first chunk to its flush"},
	FlagWorkers:               {Name: "workers", ViperKey: "persistence.workers", Kind: KindUint, Description: "Number of persistence workers"},
	FlagQueueSize:             {Name: "queue-size", ViperKey: "persistence.queue_size", Kind: KindUint, Description: "Capacity of the persistence queue"},
	FlagCleanupInterval:       {Name: "cleanup-interval", ViperKey: "persistence.cleanup_interval", Description: "Interval between expired agent data sweeps"},
	FlagEventStreamProv:       {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Record event publisher: nop or kafka"},
	FlagEventStreamBrk:        {Name: "eventstream-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventStreamTpc:        {Name: "eventstream-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for record events"},
}

var defaultValues = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

// Register adds the flags named by keys to cmd, typed by their Kind and
// defaulting to the value in NewDefaultConfig. Unknown keys are skipped.
func (fs FlagSet) Register(cmd *cobra.Command, keys ...string) {
	d := defaultValues()
	flags := cmd.Flags()
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		switch f.Kind {
		case KindUint:
			flags.UintP(f.Name, f.Shorthand, d.GetUint(f.ViperKey), f.Description)
		case KindBool:
			flags.BoolP(f.Name, f.Shorthand, d.GetBool(f.ViperKey), f.Description)
		default:
			flags.StringP(f.Name, f.Shorthand, d.GetString(f.ViperKey), f.Description)
		}
	}
}

// Bind connects the flags named by keys to v so that a flag set on the
// command line wins over environment, file and defaults. Keys that are
// unknown or not registered on cmd are skipped.
func (fs FlagSet) Bind(v *viper.Viper, cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		pf := cmd.Flags().Lookup(f.Name)
		if pf == nil {
			continue
		}
		if err := v.BindPFlag(f.ViperKey, pf); err != nil {
			return fmt.Errorf("binding --%s: %w", f.Name, err)
		}
	}
	return nil
}
