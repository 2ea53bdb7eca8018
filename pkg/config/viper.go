package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/pkg/dotdir"
)

// EnvPrefix is prepended to the upper-cased, underscore-joined config key
// to form its environment variable.
const EnvPrefix = "TAPESTREAM"

// InitViper returns a viper instance layered, from lowest to highest, as
// defaults from NewDefaultConfig, the config.toml resolved for configDir,
// TAPESTREAM_* environment variables (TAPESTREAM_PROXY_UPSTREAM,
// TAPESTREAM_PERSISTENCE_FLUSH_DELAY, ...) and finally any flags bound
// with FlagSet.Bind.
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if dir != "" {
		path := filepath.Join(dir, configFile)
		switch _, err := os.Stat(path); {
		case err == nil:
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every key needs a default, even an empty one,
// for AutomaticEnv to pick up its environment variable in Unmarshal.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)

	v.SetDefault("proxy.provider", d.Proxy.Provider)
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.upstream_path", d.Proxy.UpstreamPath)
	v.SetDefault("proxy.model", d.Proxy.Model)
	v.SetDefault("proxy.agent", d.Proxy.Agent)
	v.SetDefault("proxy.listen", d.Proxy.Listen)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.pprof", d.API.Pprof)

	v.SetDefault("client.proxy_target", d.Client.ProxyTarget)
	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("persistence.flush_delay", d.Persistence.FlushDelay)
	v.SetDefault("persistence.workers", d.Persistence.Workers)
	v.SetDefault("persistence.queue_size", d.Persistence.QueueSize)
	v.SetDefault("persistence.cleanup_interval", d.Persistence.CleanupInterval)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
