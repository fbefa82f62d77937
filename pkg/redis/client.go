// Package redis connects the Redis instance shared by login codes, the email
// queue and realtime pub/sub.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reathuta/lms/config"
)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr))
	return &Client{Client: rdb, logger: logger}, nil
}

// FromConfig connects using cfg. It returns nil, nil when Redis is disabled.
func FromConfig(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil, nil
	}
	return NewClient(ctx, cfg.Addr, cfg.Password, cfg.DB, logger)
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	c.logger.Info("Redis client closing")
	return c.Client.Close()
}
