// Package utils opens the datastores selected by configuration.
package utils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/storage/inmemory"
	"github.com/papercomputeco/tapestream/pkg/storage/postgres"
	"github.com/papercomputeco/tapestream/pkg/storage/redis"
	"github.com/papercomputeco/tapestream/pkg/storage/sqlite"
)

// Options selects the datastores. PostgresDSN wins over SQLitePath; with
// neither, records live in memory.
type Options struct {
	SQLitePath  string
	PostgresDSN string

	// RedisAddr, when set, moves agent-scoped data to Redis.
	RedisAddr string
}

// Stores is an opened set of datastores.
type Stores struct {
	Driver storage.Driver

	// AgentData is nil unless a dedicated side store is configured.
	AgentData storage.AgentDataDriver
}

// Close closes every opened store.
func (s *Stores) Close() error {
	var err error
	if s.AgentData != nil {
		err = s.AgentData.Close()
	}
	if cerr := s.Driver.Close(); cerr != nil {
		err = cerr
	}
	return err
}

// NewDriver opens the record datastore for opts.
func NewDriver(ctx context.Context, opts Options, logger *slog.Logger) (storage.Driver, error) {
	switch {
	case opts.PostgresDSN != "":
		d, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return d, nil

	case opts.SQLitePath != "":
		d, err := sqlite.NewDriver(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", "path", opts.SQLitePath)
		return d, nil
	}

	logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

// Open opens the record datastore and, when configured, the Redis side store.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Stores, error) {
	driver, err := NewDriver(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	stores := &Stores{Driver: driver}
	if opts.RedisAddr == "" {
		return stores, nil
	}

	rd, err := redis.NewDriver(ctx, redis.Config{Addr: opts.RedisAddr})
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create Redis agent data store: %w", err)
	}
	logger.Info("using Redis for agent data", "addr", opts.RedisAddr)
	stores.AgentData = rd

	return stores, nil
}

// AgentDataStore returns the side store in use.
func (s *Stores) AgentDataStore() storage.AgentDataStore {
	if s.AgentData != nil {
		return s.AgentData
	}
	return s.Driver
}
