package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
// Scopes come from the resolver; operations may override them through
// ratelimit.MetadataKey metadata:
//   - Disabled: true skips limiting (tracking pixels must always render)
//   - Scope: ratelimit.ScopeIngest moves anonymous snippet calls to their own budget
//   - Limits: custom limits keyed by route template
//
// Requests are let through when the limiter store fails.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		path := operationPath(ctx)
		cfg := ratelimit.GetEndpointConfig(ctx)

		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		var (
			allowed  bool
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			allowed, exceeded, err = limiter.AllowRoute(ctx.Context(), clientKey(ctx), path, cfg.Limits)
		} else {
			allowed, exceeded, err = limiter.Allow(ctx.Context(), clientKey(ctx), resolver.Resolve(ctx))
		}

		if err != nil {
			// fail open: redirects and snippet calls must not depend on the limiter store
			logger.Warn("rate limit check failed, allowing request", zap.String("path", path), zap.Error(err))
			next(ctx)

			return
		}

		if !allowed {
			reject(api, ctx, exceeded, logger)

			return
		}

		next(ctx)
	}
}

func reject(api huma.API, ctx huma.Context, exceeded *ratelimit.LimitExceeded, logger *zap.Logger) {
	logger.Warn("rate limit exceeded",
		zap.String("path", operationPath(ctx)),
		zap.String("method", ctx.Method()),
		zap.String("scope", string(exceeded.Scope)),
		zap.Int64("count", exceeded.Count),
		zap.Int64("max", exceeded.Config.Max),
		zap.Duration("window", exceeded.Config.Window),
		zap.String("clientIp", ClientIP(ctx)),
	)

	subject := string(exceeded.Scope) + " scope"
	if exceeded.Scope == ratelimit.ScopeRoute {
		subject = "route " + exceeded.Route
	}

	ctx.SetHeader("Retry-After", strconv.Itoa(int(exceeded.RetryAfter().Seconds())))

	msg := fmt.Sprintf("rate limit exceeded: %s, %d/%d requests in %s",
		subject, exceeded.Count, exceeded.Config.Max, exceeded.Config.Window)
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

// clientKey identifies a client by IP and User-Agent.
func clientKey(ctx huma.Context) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(ClientIP(ctx)+"|"+ctx.Header("User-Agent")))
}
