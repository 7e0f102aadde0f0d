package blobcache

import (
	"context"
	"path"
	"time"

	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "blobcache")

// The redis cache shares fetched artifacts between processes, so a fleet of
// workers does not fetch the same descriptor from S3 once per process.
// Keys are namespaced as /<prefix>/blobcache/<key>.

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *redisCache) key(key string) string {
	return path.Join(c.prefix, "blobcache", key)
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "redis_get", "key", key, "err", err.Error())
		}
		return nil, false
	}
	return data, true
}

func (c *redisCache) Set(ctx context.Context, key string, data []byte) {
	err := c.client.Set(ctx, c.key(key), data, c.ttl).Err()
	if err != nil {
		// cache writes are best effort
		logger.ContextKV(ctx, xlog.ERROR, "reason", "redis_set", "key", key, "err", err.Error())
	}
}

func (c *redisCache) Remove(ctx context.Context, key string) {
	err := c.client.Del(ctx, c.key(key)).Err()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "redis_del", "key", key, "err", err.Error())
	}
}
