package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/ratelimit"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
)

func TestPolicyLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("enforces every limit of a scope", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeWrite, 5, time.Minute).
			AddLimit(ratelimit.ScopeWrite, 2, time.Hour).
			Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)

		for range 2 {
			allowed, exceeded, err := limiter.Allow(ctx, "client", []ratelimit.Scope{ratelimit.ScopeWrite})
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Nil(t, exceeded)
		}

		allowed, exceeded, err := limiter.Allow(ctx, "client", []ratelimit.Scope{ratelimit.ScopeWrite})

		require.NoError(t, err)
		assert.False(t, allowed)
		require.NotNil(t, exceeded)
		assert.Equal(t, ratelimit.ScopeWrite, exceeded.Scope)
		assert.Equal(t, time.Hour, exceeded.Config.Window)
		assert.Equal(t, int64(3), exceeded.Count)
	})

	t.Run("ignores scopes without limits", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), ratelimit.NewPolicyBuilder().Build())

		allowed, _, err := limiter.Allow(ctx, "client", []ratelimit.Scope{ratelimit.ScopeIngest})

		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestPolicyLimiter_AllowRoute(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), ratelimit.DefaultPolicy())
	limits := []ratelimit.LimitConfig{{Window: time.Minute, Max: 1}}

	allowed, _, err := limiter.AllowRoute(ctx, "client", "/{code}", limits)
	require.NoError(t, err)
	assert.True(t, allowed)

	t.Run("other routes keep their own counter", func(t *testing.T) {
		allowed, _, err := limiter.AllowRoute(ctx, "client", "/api/links", limits)

		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reports the route once exceeded", func(t *testing.T) {
		allowed, exceeded, err := limiter.AllowRoute(ctx, "client", "/{code}", limits)

		require.NoError(t, err)
		assert.False(t, allowed)
		require.NotNil(t, exceeded)
		assert.Equal(t, ratelimit.ScopeRoute, exceeded.Scope)
		assert.Equal(t, "/{code}", exceeded.Route)
		assert.Equal(t, time.Minute, exceeded.RetryAfter())
	})

	t.Run("route counters do not consume policy budgets", func(t *testing.T) {
		allowed, _, err := limiter.Allow(ctx, "client", []ratelimit.Scope{ratelimit.ScopeRead})

		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestDefaultPolicy(t *testing.T) {
	policy := ratelimit.DefaultPolicy()

	for _, scope := range []ratelimit.Scope{
		ratelimit.ScopeGlobal, ratelimit.ScopeRead, ratelimit.ScopeWrite, ratelimit.ScopeIngest,
	} {
		assert.NotEmpty(t, policy.Limits[scope], "scope %s", scope)
	}

	assert.Equal(t, []ratelimit.LimitConfig{
		{Window: time.Minute, Max: 60},
		{Window: time.Hour, Max: 1000},
	}, policy.Limits[ratelimit.ScopeWrite])
}
