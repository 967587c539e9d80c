package tracker

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no verification exists for a domain.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDomain is returned when a heartbeat carries no usable domain.
	ErrInvalidDomain = errors.New("invalid domain")
)

// Method names the tier that decided a liveness check.
type Method string

const (
	MethodHeartbeat Method = "heartbeat"
	MethodHeuristic Method = "heuristic"
	MethodNone      Method = "none"
)

// Verification is the latest heartbeat seen from a domain.
type Verification struct {
	Domain     string
	LastSeenAt time.Time
	Code       string
	Version    string
}

// Status is the outcome of a liveness check.
type Status struct {
	Domain    string
	Installed bool
	Method    Method
	// LastSeen is the latest heartbeat time, zero when none was found.
	LastSeen time.Time
}

// Repository persists tracker verifications.
type Repository interface {
	UpsertVerification(ctx context.Context, v *Verification) error
	// LatestVerification returns the most recent verification across domains.
	LatestVerification(ctx context.Context, domains ...string) (*Verification, error)
	// PruneVerifications removes verifications last seen before the cutoff.
	PruneVerifications(ctx context.Context, before time.Time) (int64, error)
}

// NormalizeDomain reduces a domain, host or URL to a bare lower-case host name.
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	return strings.TrimSuffix(u.Hostname(), ".")
}

// IsLocalhost reports whether domain can never be reached from the public internet.
func IsLocalhost(domain string) bool {
	if domain == "localhost" || strings.HasSuffix(domain, ".localhost") {
		return true
	}

	ip := net.ParseIP(domain)

	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// Variants returns domain along with its www-toggled counterpart.
func Variants(domain string) []string {
	if bare, ok := strings.CutPrefix(domain, "www."); ok {
		return []string{domain, bare}
	}

	return []string{domain, "www." + domain}
}
