// Package cache holds the Redis-backed caches used by read paths.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playmate/server/internal/model"
	"github.com/redis/go-redis/v9"
)

const anonymousFacetsKey = "playmate:filter-options:anonymous"

// FacetCache stores the anonymous filter-options universe. Authenticated
// facets depend on the viewer's interests and are never cached.
type FacetCache interface {
	// Get returns the cached options; ok is false on a miss
	Get(ctx context.Context) (opts model.FilterOptions, ok bool, err error)
	Set(ctx context.Context, opts model.FilterOptions) error
	Invalidate(ctx context.Context) error
}

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RedisFacetCache implements FacetCache as a JSON value with a TTL
type RedisFacetCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFacetCache(client *redis.Client, ttl time.Duration) *RedisFacetCache {
	return &RedisFacetCache{client: client, ttl: ttl}
}

func (c *RedisFacetCache) Get(ctx context.Context) (model.FilterOptions, bool, error) {
	val, err := c.client.Get(ctx, anonymousFacetsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.FilterOptions{}, false, nil
	}
	if err != nil {
		return model.FilterOptions{}, false, err
	}
	var opts model.FilterOptions
	if err := json.Unmarshal(val, &opts); err != nil {
		return model.FilterOptions{}, false, fmt.Errorf("decode cached facets: %w", err)
	}
	return opts, true, nil
}

func (c *RedisFacetCache) Set(ctx context.Context, opts model.FilterOptions) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, anonymousFacetsKey, data, c.ttl).Err()
}

func (c *RedisFacetCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, anonymousFacetsKey).Err()
}
