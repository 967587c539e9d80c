package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// ScopeRoute labels limits configured on a single route rather than through the policy.
const ScopeRoute Scope = "route"

// Store records requests in sliding windows.
type Store interface {
	// Record records a request under key and returns how many requests the key saw
	// within the trailing window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// LimitExceeded describes the limit a rejected request hit.
type LimitExceeded struct {
	Scope Scope
	// Route is the route template for ScopeRoute limits.
	Route  string
	Config LimitConfig
	Count  int64
}

// RetryAfter is how long the client should back off, at most one full window.
func (e *LimitExceeded) RetryAfter() time.Duration {
	return e.Config.Window
}

// PolicyLimiter enforces the policy limits of resolved scopes and per-route limits.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		store:  store,
		policy: policy,
	}
}

// Allow records the request against every policy limit of scopes. It stops at the
// first exceeded limit, which is returned; exceeded is nil when the request is allowed.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (bool, *LimitExceeded, error) {
	for _, scope := range scopes {
		exceeded, err := l.check(ctx, clientKey+":"+string(scope), l.policy.Limits[scope])
		if err != nil {
			return false, nil, err
		}

		if exceeded != nil {
			exceeded.Scope = scope

			return false, exceeded, nil
		}
	}

	return true, nil, nil
}

// AllowRoute records the request against limits configured for route. Every path
// matching the route template shares one counter per client.
func (l *PolicyLimiter) AllowRoute(
	ctx context.Context, clientKey, route string, limits []LimitConfig,
) (bool, *LimitExceeded, error) {
	exceeded, err := l.check(ctx, clientKey+":"+string(ScopeRoute)+":"+route, limits)
	if err != nil {
		return false, nil, err
	}

	if exceeded != nil {
		exceeded.Scope = ScopeRoute
		exceeded.Route = route

		return false, exceeded, nil
	}

	return true, nil, nil
}

func (l *PolicyLimiter) check(ctx context.Context, prefix string, limits []LimitConfig) (*LimitExceeded, error) {
	for _, limit := range limits {
		// windows of one prefix are counted independently
		key := fmt.Sprintf("%s:%d", prefix, limit.Window.Milliseconds())

		count, err := l.store.Record(ctx, key, limit.Window)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}

		if count > limit.Max {
			return &LimitExceeded{Config: limit, Count: count}, nil
		}
	}

	return nil, nil
}
