package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kasukras-star/apotikme-api/pkg/config"
)

// NewRedisClient returns a lazily connecting Redis client for the remote store.
func NewRedisClient(cfg config.RedisConfig, timeout time.Duration) *redis.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
}

// NewRedis returns a Redis client verified with a ping bounded by timeout.
func NewRedis(cfg config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	client := NewRedisClient(cfg, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), client.Options().DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return client, nil
}
