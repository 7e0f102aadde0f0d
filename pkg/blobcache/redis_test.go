package blobcache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/effective-security/llmhub/pkg/blobcache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func Test_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7",
		testcontainers.WithConfigModifier(func(config *container.Config) {
			config.Env = []string{
				"ALLOW_EMPTY_PASSWORD=yes",
			}
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	prefix := fmt.Sprintf("test-%d", time.Now().Unix())
	c := blobcache.NewRedis(client, prefix, time.Minute)

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Set(ctx, "k1", []byte("v1"))
	data, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "v1", string(data))

	c.Remove(ctx, "k1")
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)

	// expired entries are gone
	short := blobcache.NewRedis(client, prefix, time.Second)
	short.Set(ctx, "k2", []byte("v2"))
	_, ok = short.Get(ctx, "k2")
	require.True(t, ok)
	time.Sleep(1500 * time.Millisecond)
	_, ok = short.Get(ctx, "k2")
	assert.False(t, ok)
}
