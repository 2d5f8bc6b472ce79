//go:build integration

package cache

import (
	"LinkSnap-Backend/internal/repository/memory"
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisClient_AgainstContainer(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := tcredis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	client := NewRedisClient(rdb)
	require.NoError(t, client.Ping(ctx))

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	backend := memory.New()
	link := seed(t, backend, "Redis1", now.Add(time.Hour))
	s := newCached(backend, client)

	got, err := s.GetActiveLinkByCode(ctx, "Redis1")
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)

	ttl, err := rdb.TTL(ctx, "link:code:Redis1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.DeactivateLink(ctx, got))
	_, err = client.Get(ctx, "link:code:Redis1")
	assert.ErrorIs(t, err, ErrMiss)
}
