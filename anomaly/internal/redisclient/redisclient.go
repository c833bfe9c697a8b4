// Package redisclient builds the Redis connection pool shared by the queue
// and the fan-out channel.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/config"
)

const pingTimeout = 5 * time.Second

// Options converts the config into go-redis options. A caller that cannot
// borrow a connection within PoolTimeout gets an error instead of blocking.
// Zero MaxRetries disables retries rather than taking the go-redis default.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opt.PoolTimeout = cfg.PoolTimeout
	}
	opt.MaxRetries = cfg.MaxRetries
	if opt.MaxRetries == 0 {
		opt.MaxRetries = -1
	}
	return opt, nil
}

// New creates the pool and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
