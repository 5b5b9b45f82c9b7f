package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls the Redis-backed ledger.
type RedisConfig struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
	Key      string `mapstructure:"redis_key"`
}

// Redis keeps delivered identities in a Redis set, for deployments where
// several hosts share one ledger.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("ledger redis address is required")
	}
	key := cfg.Key
	if key == "" {
		key = "harvester:delivered"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping ledger redis: %w", err)
	}
	return &Redis{client: client, key: key}, nil
}

// Seen implements Ledger.
func (r *Redis) Seen(ctx context.Context, identity string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, identity).Result()
	if err != nil {
		return false, fmt.Errorf("ledger membership: %w", err)
	}
	return ok, nil
}

// MarkSeen implements Ledger.
func (r *Redis) MarkSeen(ctx context.Context, identity string) error {
	if err := r.client.SAdd(ctx, r.key, identity).Err(); err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	return nil
}

// Close implements Ledger.
func (r *Redis) Close() error {
	return r.client.Close()
}
