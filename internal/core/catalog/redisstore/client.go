// Package redisstore persists serialized catalog snapshots in Redis so
// gateway replicas can warm-start without hitting the remote service.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "catalog:snapshot"

type Option func(*redis.Options)

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, addr string, ttl time.Duration, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Save stores a serialized snapshot. A zero ttl keeps it until the next
// refresh overwrites it.
func (c *Client) Save(ctx context.Context, data []byte) error {
	if err := c.rdb.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", snapshotKey, err)
	}
	return nil
}

// Load returns the stored snapshot bytes, or an error when none exist.
func (c *Client) Load(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("no stored snapshot under %s", snapshotKey)
		}
		return nil, fmt.Errorf("redis GET %s: %w", snapshotKey, err)
	}
	return data, nil
}

func (c *Client) Close() error { return c.rdb.Close() }
