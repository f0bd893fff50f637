package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sipeta:feed:"

// OpenRedis returns nil when no address is configured, which leaves the
// feed cache disabled.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// FeedCache stores rendered feed bodies per dataset version and filter.
// A nil *FeedCache or one without a client never hits and ignores writes.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: ttl}
}

// Key builds the cache key. The dataset version is part of it, so a
// refresh leaves old entries to expire on their own.
func Key(version, filterKey string) string {
	sum := sha1.Sum([]byte(filterKey))
	return keyPrefix + version + ":" + hex.EncodeToString(sum[:])
}

func (c *FeedCache) enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Get returns the cached body and whether it was found. Redis errors count
// as a miss.
func (c *FeedCache) Get(ctx context.Context, version, filterKey string) ([]byte, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	b, err := c.rdb.Get(ctx, Key(version, filterKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *FeedCache) Set(ctx context.Context, version, filterKey string, body []byte) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Set(ctx, Key(version, filterKey), body, c.ttl).Err()
}

// Ping checks the connection. A disabled cache is always healthy.
func (c *FeedCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *FeedCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
