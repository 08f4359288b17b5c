// Package cache provides the read-through projection cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/cv-keeper/internal/model"
)

// ProjectionCache caches projections by CV id.
type ProjectionCache interface {
	// Get returns the cached projection; ok is false on a miss.
	Get(ctx context.Context, cvID string) (p *model.Projection, ok bool, err error)
	Set(ctx context.Context, p model.Projection) error
	Invalidate(ctx context.Context, cvID string) error
}

// Nop is the cache used when no redis URL is configured.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.Projection, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, model.Projection) error                 { return nil }
func (Nop) Invalidate(context.Context, string) error                    { return nil }

// Client is the subset of *redis.Client used here.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores projections as JSON under cv:projection:<cvId>.
type Redis struct {
	client Client
	ttl    time.Duration
}

// NewRedis creates a redis-backed cache. A non-positive ttl stores keys without expiry.
func NewRedis(client Client, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

// Key returns the cache key of a CV.
func Key(cvID string) string { return "cv:projection:" + cvID }

func (c *Redis) Get(ctx context.Context, cvID string) (*model.Projection, bool, error) {
	raw, err := c.client.Get(ctx, Key(cvID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var p model.Projection
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached projection %s: %w", cvID, err)
	}
	return &p, true, nil
}

func (c *Redis) Set(ctx context.Context, p model.Projection) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(p.CVID), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, cvID string) error {
	return c.client.Del(ctx, Key(cvID)).Err()
}

// Connect initializes a Redis client from URL or host:port input and pings it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
