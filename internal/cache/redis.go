package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stupside/reel/internal/app"
)

const defaultRedisPrefix = "reel:content:"

// Redis stores entries as JSON values under prefix+contentID.
type Redis struct {
	client *redis.Client
	prefix string
	cfg    app.RedisConfig
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg app.RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis cache: addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, cfg: cfg}, nil
}

func (r *Redis) Get(ctx context.Context, contentID string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+contentID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", contentID, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decoding cache entry %s: %w", contentID, err)
	}
	return e, true, nil
}

// Put writes the entry with the configured TTL; zero keeps it forever.
func (r *Redis) Put(ctx context.Context, contentID string, e Entry) error {
	e.ContentID = contentID
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", contentID, err)
	}
	if err := r.client.Set(ctx, r.prefix+contentID, raw, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", contentID, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
