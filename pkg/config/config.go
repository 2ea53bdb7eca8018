package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/tapestream/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// CurrentV is the config file version this build reads and writes.
	CurrentV = 0
)

// Configer reads and writes config.toml in a resolved .tapestream/ directory.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the config file location for override (see
// dotdir.Manager.Target). The file itself need not exist yet.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{targetPath: path}, nil
}

// GetTarget is the config file path, empty when no directory resolved.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// ValidConfigKeys returns every config key in TOML section order.
func ValidConfigKeys() []string {
	return slices.Clone(orderedKeys)
}

func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// ValidProviders returns the upstream stream dialects the proxy understands.
func ValidProviders() []string {
	return []string{"agent", "openai", "anthropic"}
}

func lookupKey(key string) (configKeyInfo, error) {
	info, ok := configKeys[key]
	if !ok {
		return configKeyInfo{}, fmt.Errorf("unknown config key: %q", key)
	}
	return info, nil
}

// LoadConfig returns the file's configuration with unset fields filled from
// NewDefaultConfig. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if errors.Is(err, os.ErrNotExist) {
		return NewDefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	strs := []struct{ dst, def *string }{
		{&cfg.Proxy.Provider, &d.Proxy.Provider},
		{&cfg.Proxy.Upstream, &d.Proxy.Upstream},
		{&cfg.Proxy.UpstreamPath, &d.Proxy.UpstreamPath},
		{&cfg.Proxy.Agent, &d.Proxy.Agent},
		{&cfg.Proxy.Listen, &d.Proxy.Listen},
		{&cfg.API.Listen, &d.API.Listen},
		{&cfg.Client.ProxyTarget, &d.Client.ProxyTarget},
		{&cfg.Client.APITarget, &d.Client.APITarget},
		{&cfg.Persistence.FlushDelay, &d.Persistence.FlushDelay},
		{&cfg.Persistence.CleanupInterval, &d.Persistence.CleanupInterval},
		{&cfg.EventStream.Provider, &d.EventStream.Provider},
		{&cfg.EventStream.Topic, &d.EventStream.Topic},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = *s.def
		}
	}

	if cfg.Persistence.Workers == 0 {
		cfg.Persistence.Workers = d.Persistence.Workers
	}
	if cfg.Persistence.QueueSize == 0 {
		cfg.Persistence.QueueSize = d.Persistence.QueueSize
	}
}

// SaveConfig writes cfg to the config file. The file is replaced
// atomically so a concurrent reader never sees a truncated config.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.targetPath), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.targetPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and saves it to the file.
func (c *Configer) SetConfigValue(key, value string) error {
	info, err := lookupKey(key)
	if err != nil {
		return err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, err := lookupKey(key)
	if err != nil {
		return "", err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

// presets maps a preset name to its changes from NewDefaultConfig.
var presets = map[string]func(*Config){
	"agent": func(*Config) {},
	"openai": func(cfg *Config) {
		cfg.Proxy.Provider = "openai"
		cfg.Proxy.Upstream = "https://api.openai.com"
		cfg.Proxy.UpstreamPath = "/v1/chat/completions"
		cfg.Proxy.Model = "gpt-4.1-mini"
	},
	"anthropic": func(cfg *Config) {
		cfg.Proxy.Provider = "anthropic"
		cfg.Proxy.Upstream = "https://api.anthropic.com"
		cfg.Proxy.UpstreamPath = "/v1/messages"
		cfg.Proxy.Model = "claude-sonnet-4-5"
	},
}

// PresetConfig returns the default config adjusted for an upstream preset.
func PresetConfig(name string) (*Config, error) {
	apply, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
	cfg := NewDefaultConfig()
	apply(cfg)
	return cfg, nil
}

// ValidPresetNames returns the recognized preset names.
func ValidPresetNames() []string {
	return []string{"agent", "openai", "anthropic"}
}

// ParseConfigTOML decodes a config file. Only version CurrentV (or an
// omitted version) is accepted.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
