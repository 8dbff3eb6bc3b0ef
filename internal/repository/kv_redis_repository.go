package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

// RedisKVRepository stores JSON documents under plain Redis string keys without expiry.
type RedisKVRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisKVRepository constructs the Redis-backed store.
func NewRedisKVRepository(client *redis.Client, logger *zap.Logger) *RedisKVRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisKVRepository{client: client, logger: logger}
}

// Get returns the raw document for key.
func (r *RedisKVRepository) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if r.client == nil {
		return nil, appErrors.ErrKeyNotFound
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return json.RawMessage(raw), nil
}

// Set replaces the document stored under key.
func (r *RedisKVRepository) Set(ctx context.Context, key string, value json.RawMessage) error {
	if r.client == nil {
		return fmt.Errorf("redis set %s: client not configured", key)
	}

	if err := r.client.Set(ctx, key, []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// SetMany writes all entries inside one MULTI/EXEC block.
func (r *RedisKVRepository) SetMany(ctx context.Context, entries map[string]json.RawMessage) error {
	if len(entries) == 0 {
		return nil
	}
	if r.client == nil {
		return fmt.Errorf("redis set many: client not configured")
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, key, []byte(value), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set many (%d keys): %w", len(entries), err)
	}

	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisKVRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
