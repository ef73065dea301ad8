package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "wl:geocode:"

// Cache wraps a Geocoder with a Redis lookup cache. Only successful
// lookups are stored. Redis errors are logged and the wrapped geocoder is
// used instead.
type Cache struct {
	next Geocoder
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCache creates a caching geocoder.
func NewCache(next Geocoder, rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{next: next, rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL (or a bare host:port) and checks the
// connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}

// Lookup returns the cached point for query, or resolves and caches it.
func (c *Cache) Lookup(ctx context.Context, query string) (Point, error) {
	key := cacheKey(query)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Point
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		slog.Warn("discarding corrupt geocode cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("geocode cache read failed", "error", err)
	}

	p, err := c.next.Lookup(ctx, query)
	if err != nil {
		return Point{}, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("geocode cache write failed", "error", err)
	}
	return p, nil
}

func cacheKey(query string) string {
	return cacheKeyPrefix + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
