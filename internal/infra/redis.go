package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes the Redis client. Zero values keep go-redis defaults.
type RedisOptions struct {
	PoolSize        int
	ConnectAttempts uint
}

// NewRedisClient parses url and waits for Redis to answer a ping. An empty url
// yields a nil client, which callers treat as "Redis disabled".
func NewRedisClient(ctx context.Context, url string, opts RedisOptions) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	client := redis.NewClient(opt)

	ping := func() error { return client.Ping(ctx).Err() }
	if err := withStartupRetry(ctx, opts.ConnectAttempts, ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
