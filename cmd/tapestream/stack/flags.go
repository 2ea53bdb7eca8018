package stack

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/api"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/credentials"
	"github.com/papercomputeco/tapestream/proxy"
)

// Registry keys of the flags shared by the service commands.
var (
	StorageFlags = []string{config.FlagSQLite, config.FlagPostgres, config.FlagRedis}

	PersistenceFlags = []string{
		config.FlagFlushDelay,
		config.FlagWorkers,
		config.FlagQueueSize,
		config.FlagCleanupInterval,
	}

	EventStreamFlags = []string{
		config.FlagEventStreamProv,
		config.FlagEventStreamBrk,
		config.FlagEventStreamTpc,
	}

	UpstreamFlags = []string{
		config.FlagUpstream,
		config.FlagUpstreamPath,
		config.FlagProvider,
		config.FlagModel,
		config.FlagAgent,
	}
)

// RuntimeFlags are the flags every command that opens a Stack registers.
func RuntimeFlags() []string {
	keys := append([]string{}, StorageFlags...)
	keys = append(keys, PersistenceFlags...)
	return append(keys, EventStreamFlags...)
}

// AddFlags registers the registry flags named by keys on cmd. Values are
// read back through viper once Bind has run.
func AddFlags(cmd *cobra.Command, keys ...string) {
	config.Flags.Register(cmd, keys...)
}

// Bind loads configuration for cmd from --config-dir and the environment,
// then binds the flags named by keys on top.
func Bind(cmd *cobra.Command, keys ...string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Flags.Bind(v, cmd, keys...); err != nil {
		return nil, err
	}
	return v, nil
}

// ProxyConfig reads the proxy configuration from v. For openai and
// anthropic upstreams the API key comes from the provider's environment
// variable or the credentials file in configDir.
func ProxyConfig(v *viper.Viper, configDir string) (proxy.Config, error) {
	cfg := proxy.Config{
		ListenAddr:   v.GetString("proxy.listen"),
		UpstreamURL:  v.GetString("proxy.upstream"),
		UpstreamPath: v.GetString("proxy.upstream_path"),
		Provider:     v.GetString("proxy.provider"),
		Model:        v.GetString("proxy.model"),
		DefaultAgent: v.GetString("proxy.agent"),
	}
	if !credentials.IsSupported(cfg.Provider) {
		return cfg, nil
	}

	store, err := credentials.NewStore(configDir)
	if err != nil {
		return proxy.Config{}, fmt.Errorf("loading credentials: %w", err)
	}
	if cfg.APIKey, err = store.Resolve(cfg.Provider); err != nil {
		return proxy.Config{}, fmt.Errorf("loading credentials: %w", err)
	}
	return cfg, nil
}

// APIConfig reads the API server configuration from v.
func APIConfig(v *viper.Viper) api.Config {
	return api.Config{
		ListenAddr: v.GetString("api.listen"),
		Pprof:      v.GetBool("api.pprof"),
	}
}
