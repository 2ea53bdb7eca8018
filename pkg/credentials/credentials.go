// Package credentials stores upstream API keys in credentials.toml so the
// proxy can authenticate to openai and anthropic upstreams on behalf of its
// clients.
package credentials

import (
	"bytes"
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
	credentialsFile = "credentials.toml"
	currentVersion  = 0
)

var envVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Store reads and writes credentials.toml in a .tapestream/ directory.
type Store struct {
	path string
}

// NewStore resolves the .tapestream/ directory (override first) and returns
// a Store for its credentials.toml.
func NewStore(override string) (*Store, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	return &Store{path: filepath.Join(dir, credentialsFile)}, nil
}

// Path is the credentials file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored credentials, empty when the file is missing.
func (s *Store) Load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{Version: currentVersion, Providers: map[string]Provider{}}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	f := &File{}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if f.Providers == nil {
		f.Providers = map[string]Provider{}
	}
	return f, nil
}

func (s *Store) save(f *File) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// SetKey stores key for provider, replacing any previous key.
func (s *Store) SetKey(provider, key string) error {
	if !IsSupported(provider) {
		return fmt.Errorf("unsupported provider: %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	f, err := s.Load()
	if err != nil {
		return err
	}
	f.Providers[provider] = Provider{APIKey: key}
	return s.save(f)
}

// Key returns the stored key for provider, or "" when none is stored.
func (s *Store) Key(provider string) (string, error) {
	f, err := s.Load()
	if err != nil {
		return "", err
	}
	return f.Providers[provider].APIKey, nil
}

// RemoveKey deletes the stored key for provider. Removing a missing key is
// not an error.
func (s *Store) RemoveKey(provider string) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := f.Providers[provider]; !ok {
		return nil
	}
	delete(f.Providers, provider)
	return s.save(f)
}

// Providers lists the providers with a stored key, sorted.
func (s *Store) Providers() ([]string, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Providers))
	for name := range f.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Resolve returns the key the proxy should use for provider: the provider's
// environment variable when set, otherwise the stored key.
func (s *Store) Resolve(provider string) (string, error) {
	if env := EnvVar(provider); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, nil
		}
	}
	return s.Key(provider)
}

// EnvVar is the environment variable consulted for provider's key.
func EnvVar(provider string) string {
	return envVars[provider]
}

// Supported lists the providers that take an API key.
func Supported() []string {
	return []string{"anthropic", "openai"}
}

// IsSupported reports whether provider takes an API key.
func IsSupported(provider string) bool {
	return slices.Contains(Supported(), provider)
}
