// Package redis provides a Redis-backed agent data store. Expiration is
// delegated to Redis key TTLs, so expired entries disappear on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// DefaultKeyPrefix namespaces every key written by the driver.
const DefaultKeyPrefix = "tapestream:agentdata"

// Driver implements storage.AgentDataDriver on Redis.
type Driver struct {
	rdb       *redis.Client
	keyPrefix string
	now       func() time.Time
}

// Config configures a Driver.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewDriverWithClient(rdb, cfg.KeyPrefix), nil
}

// NewDriverWithClient wraps an existing client.
func NewDriverWithClient(rdb *redis.Client, keyPrefix string) *Driver {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Driver{rdb: rdb, keyPrefix: keyPrefix, now: time.Now}
}

func (d *Driver) key(conversationID, agentID, dataType string) string {
	return d.keyPrefix + ":" + storage.AgentDataKey(conversationID, agentID, dataType)
}

// UpsertAgentData writes ad with a TTL matching its expiration. An entry
// that is already expired is removed instead.
func (d *Driver) UpsertAgentData(ctx context.Context, ad *storage.AgentData) error {
	if ad == nil {
		return errors.New("cannot store nil agent data")
	}
	if ad.UpdatedAt.IsZero() {
		ad.UpdatedAt = d.now()
	}

	key := d.key(ad.ConversationID, ad.AgentID, ad.DataType)

	var ttl time.Duration
	if ad.ExpiresAt != nil {
		ttl = ad.ExpiresAt.Sub(d.now())
		if ttl <= 0 {
			if err := d.rdb.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("delete expired agent data: %w", err)
			}
			return nil
		}
	}

	payload, err := json.Marshal(ad)
	if err != nil {
		return fmt.Errorf("marshal agent data: %w", err)
	}

	// A zero TTL clears any expiration left by a previous write.
	if err := d.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set agent data: %w", err)
	}
	return nil
}

// GetAgentData reads the entry for the key.
func (d *Driver) GetAgentData(ctx context.Context, conversationID, agentID, dataType string) (*storage.AgentData, error) {
	payload, err := d.rdb.Get(ctx, d.key(conversationID, agentID, dataType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.NotFoundError{
			Kind: "agent data",
			Key:  storage.AgentDataKey(conversationID, agentID, dataType),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent data: %w", err)
	}

	var ad storage.AgentData
	if err := json.Unmarshal(payload, &ad); err != nil {
		return nil, fmt.Errorf("unmarshal agent data: %w", err)
	}
	return &ad, nil
}

// DeleteExpiredAgentData is a no-op: Redis evicts expired keys itself.
func (d *Driver) DeleteExpiredAgentData(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Close closes the Redis client.
func (d *Driver) Close() error {
	return d.rdb.Close()
}
