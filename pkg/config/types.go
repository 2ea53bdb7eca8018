package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent tapestream configuration stored as
// config.toml in the .tapestream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Persistence PersistenceConfig `toml:"persistence"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the datastore shared by the proxy and the API.
// PostgresDSN wins over SQLitePath; RedisAddr moves agent data to Redis.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Provider     string `toml:"provider,omitempty"`
	Upstream     string `toml:"upstream,omitempty"`
	UpstreamPath string `toml:"upstream_path,omitempty"`
	Model        string `toml:"model,omitempty"`
	Agent        string `toml:"agent,omitempty"`
	Listen       string `toml:"listen,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
	Pprof  bool   `toml:"pprof,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// proxy or API server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// PersistenceConfig tunes buffered event persistence. Durations are Go
// duration strings.
type PersistenceConfig struct {
	FlushDelay      string `toml:"flush_delay,omitempty"`
	Workers         uint   `toml:"workers,omitempty"`
	QueueSize       uint   `toml:"queue_size,omitempty"`
	CleanupInterval string `toml:"cleanup_interval,omitempty"`
}

// EventStreamConfig selects where record-persisted events are published.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func oneOfKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (expected one of %v)", name, v, allowed)
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for %s: must be positive", name)
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.redis_addr":   stringKey(func(c *Config) *string { return &c.Storage.RedisAddr }),

	"proxy.provider":      oneOfKey("proxy.provider", ValidProviders(), func(c *Config) *string { return &c.Proxy.Provider }),
	"proxy.upstream":      stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"proxy.upstream_path": stringKey(func(c *Config) *string { return &c.Proxy.UpstreamPath }),
	"proxy.model":         stringKey(func(c *Config) *string { return &c.Proxy.Model }),
	"proxy.agent":         stringKey(func(c *Config) *string { return &c.Proxy.Agent }),
	"proxy.listen":        stringKey(func(c *Config) *string { return &c.Proxy.Listen }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.pprof": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.Pprof) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for api.pprof: %w", err)
			}
			c.API.Pprof = b
			return nil
		},
	},

	"client.proxy_target": stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.api_target":   stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"persistence.flush_delay":      durationKey("persistence.flush_delay", func(c *Config) *string { return &c.Persistence.FlushDelay }),
	"persistence.workers":          uintKey("persistence.workers", func(c *Config) *uint { return &c.Persistence.Workers }),
	"persistence.queue_size":       uintKey("persistence.queue_size", func(c *Config) *uint { return &c.Persistence.QueueSize }),
	"persistence.cleanup_interval": durationKey("persistence.cleanup_interval", func(c *Config) *string { return &c.Persistence.CleanupInterval }),

	"eventstream.provider": oneOfKey("eventstream.provider", []string{"nop", "kafka"}, func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// orderedKeys lists the config keys in TOML section order.
var orderedKeys = []string{
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"storage.redis_addr",
	"proxy.provider",
	"proxy.upstream",
	"proxy.upstream_path",
	"proxy.model",
	"proxy.agent",
	"proxy.listen",
	"api.listen",
	"api.pprof",
	"client.proxy_target",
	"client.api_target",
	"persistence.flush_delay",
	"persistence.workers",
	"persistence.queue_size",
	"persistence.cleanup_interval",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}
