package credentials

// File is the content of credentials.toml.
type File struct {
	Version   int                 `toml:"version"`
	Providers map[string]Provider `toml:"providers"`
}

// Provider holds the stored key of one upstream provider.
type Provider struct {
	APIKey string `toml:"api_key"`
}
