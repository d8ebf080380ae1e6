// Package cache holds the Redis-backed occupancy cache. Occupancy stats are
// read on every seat-map render, so they are kept hot for a short TTL and
// invalidated whenever a reservation for the showtime changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no cached entry exists for a showtime.
var ErrMiss = errors.New("cache miss")

// OccupancyCache stores serialized occupancy stats per showtime.
type OccupancyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOccupancyCache returns a cache over the given client. A nil client
// disables the cache: Get always misses and writes are no-ops.
func NewOccupancyCache(client *redis.Client, ttl time.Duration) *OccupancyCache {
	return &OccupancyCache{client: client, ttl: ttl}
}

func (c *OccupancyCache) key(showtimeID string) string {
	return fmt.Sprintf("occupancy:%s", showtimeID)
}

// Get unmarshals the cached stats for a showtime into dst.
func (c *OccupancyCache) Get(ctx context.Context, showtimeID string, dst any) error {
	if c.client == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, c.key(showtimeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Set stores the stats for a showtime with the cache TTL.
func (c *OccupancyCache) Set(ctx context.Context, showtimeID string, v any) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(showtimeID), raw, c.ttl).Err()
}

// Invalidate drops the cached stats for a showtime.
func (c *OccupancyCache) Invalidate(ctx context.Context, showtimeID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(showtimeID)).Err()
}
