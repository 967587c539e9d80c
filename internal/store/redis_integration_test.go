//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
	"go.uber.org/zap"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}

	return "localhost:6379"
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: getRedisAddr()})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisCacheRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)

	t.Run("serves cached link after write-through", func(t *testing.T) {
		backing := store.NewMemoryStore()
		cache := store.NewRedisCacheRepository(backing, client, time.Minute, zap.NewNop())
		code := attribution.Code("rc" + uuid.NewString()[:8])

		link := &attribution.Link{Code: code, DestinationURL: "https://shop.example", OwnerID: "owner-1", CreatedAt: time.Now()}
		require.NoError(t, cache.Save(ctx, link))

		t.Cleanup(func() { client.Del(ctx, "link:"+string(code)) })

		// drop it from the backing store; the cache still answers
		require.NoError(t, backing.Delete(ctx, code, "owner-1"))

		got, err := cache.GetByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, link.ID, got.ID)
		assert.Equal(t, "https://shop.example", got.DestinationURL)
	})

	t.Run("delete evicts the cache entry", func(t *testing.T) {
		cache := store.NewRedisCacheRepository(store.NewMemoryStore(), client, time.Minute, zap.NewNop())
		code := attribution.Code("rc" + uuid.NewString()[:8])

		require.NoError(t, cache.Save(ctx, &attribution.Link{Code: code, OwnerID: "owner-1", CreatedAt: time.Now()}))
		require.NoError(t, cache.Delete(ctx, code, "owner-1"))

		_, err := cache.GetByCode(ctx, code)
		assert.ErrorIs(t, err, attribution.ErrNotFound)
	})
}

func TestRateLimitRedisStoreIntegration(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	s := store.NewRateLimitRedisStore(client)
	key := "test:" + uuid.NewString()

	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+key) })

	for want := int64(1); want <= 3; want++ {
		count, err := s.Record(ctx, key, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}
