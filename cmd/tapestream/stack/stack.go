// Package stack assembles the runtime shared by the tapestream services:
// datastores, the record event publisher and the buffered persister.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/tapestream/pkg/eventstream/utils"
	"github.com/papercomputeco/tapestream/pkg/logger"
	"github.com/papercomputeco/tapestream/pkg/persistence"
	storageutils "github.com/papercomputeco/tapestream/pkg/storage/utils"
)

// Settings are the resolved runtime options.
type Settings struct {
	Storage storageutils.Options

	FlushDelay      time.Duration
	CleanupInterval time.Duration
	Workers         uint
	QueueSize       uint

	EventStream eventstreamutils.NewPublisherOpts
}

// SettingsFromViper reads Settings from a viper instance prepared with
// config.InitViper and bound flags.
func SettingsFromViper(v *viper.Viper) (Settings, error) {
	flushDelay, err := time.ParseDuration(v.GetString("persistence.flush_delay"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid persistence.flush_delay: %w", err)
	}
	cleanupInterval, err := time.ParseDuration(v.GetString("persistence.cleanup_interval"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid persistence.cleanup_interval: %w", err)
	}

	return Settings{
		Storage: storageutils.Options{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
			RedisAddr:   v.GetString("storage.redis_addr"),
		},
		FlushDelay:      flushDelay,
		CleanupInterval: cleanupInterval,
		Workers:         v.GetUint("persistence.workers"),
		QueueSize:       v.GetUint("persistence.queue_size"),
		EventStream: eventstreamutils.NewPublisherOpts{
			ProviderType: v.GetString("eventstream.provider"),
			Brokers:      v.GetString("eventstream.brokers"),
			Topic:        v.GetString("eventstream.topic"),
		},
	}, nil
}

// Stack is an opened runtime.
type Stack struct {
	Stores    *storageutils.Stores
	Publisher eventstream.Publisher
	Persister *persistence.Persister

	cleanupInterval time.Duration
	logger          *slog.Logger
}

// Open opens the datastores and the publisher and starts the persister.
func Open(ctx context.Context, s Settings, logger *slog.Logger) (*Stack, error) {
	stores, err := storageutils.Open(ctx, s.Storage, logger)
	if err != nil {
		return nil, err
	}

	opts := s.EventStream
	opts.Logger = logger
	publisher, err := eventstreamutils.NewPublisher(&opts)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	persister, err := persistence.New(persistence.Config{
		Driver:     stores.Driver,
		AgentData:  stores.AgentDataStore(),
		Publisher:  publisher,
		FlushDelay: s.FlushDelay,
		Workers:    s.Workers,
		QueueSize:  s.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		_ = publisher.Close()
		_ = stores.Close()
		return nil, fmt.Errorf("creating persister: %w", err)
	}

	return &Stack{
		Stores:          stores,
		Publisher:       publisher,
		Persister:       persister,
		cleanupInterval: s.CleanupInterval,
		logger:          logger,
	}, nil
}

// RunJanitor sweeps expired agent data until ctx is done.
func (s *Stack) RunJanitor(ctx context.Context) {
	if s.cleanupInterval <= 0 {
		return
	}
	err := s.Persister.RunJanitor(ctx, s.cleanupInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("janitor stopped", "error", err)
	}
}

// Close flushes open buffers, drains queued writes and closes the publisher
// and the datastores, in that order.
func (s *Stack) Close() error {
	return errors.Join(
		s.Persister.Close(),
		s.Publisher.Close(),
		s.Stores.Close(),
	)
}

// NewLogger builds the service logger: pretty output on stderr, plus JSON
// lines appended to logFile when set. The returned close function closes
// the log file.
func NewLogger(debug bool, logFile string) (*slog.Logger, func() error, error) {
	console := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(os.Stderr),
	)
	if logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f.Close, nil
}
