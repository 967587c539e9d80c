package ratelimit

import "time"

// LimitConfig allows at most Max requests per client within Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced on it.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy returns the limits applied when an endpoint has no custom configuration.
// Anonymous ingestion gets its own budget since a busy storefront fires several
// snippet calls per page view.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, 1000, time.Minute).
		AddLimit(ScopeRead, 300, time.Minute).
		AddLimit(ScopeWrite, 60, time.Minute).
		AddLimit(ScopeWrite, 1000, time.Hour).
		AddLimit(ScopeIngest, 600, time.Minute).
		Build()
}

// PolicyBuilder assembles a Policy fluently.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder starts an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{policy: &Policy{Limits: make(map[Scope][]LimitConfig)}}
}

// AddLimit appends a limit of max requests per window to scope.
func (b *PolicyBuilder) AddLimit(scope Scope, max int64, window time.Duration) *PolicyBuilder {
	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Window: window, Max: max})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}
