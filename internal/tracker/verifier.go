package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/xzrsniper/affiliate-tracking-sub000/internal/metrics"
	"go.uber.org/zap"
)

// Heartbeat is a liveness ping sent by the snippet.
type Heartbeat struct {
	// Domain is the explicitly reported page domain.
	Domain string
	// Origin and Referrer are the request headers used when Domain is empty.
	Origin   string
	Referrer string
	Code     string
	Version  string
}

// VerifierConfig tunes the liveness tiers.
type VerifierConfig struct {
	// Freshness is how recent a heartbeat must be to prove installation.
	Freshness time.Duration
}

// DefaultVerifierConfig returns the production defaults.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{Freshness: 10 * time.Minute}
}

// Verifier decides whether the tracking snippet is live on a domain.
type Verifier struct {
	repo    Repository
	prober  Prober
	cfg     VerifierConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewVerifier creates a tracker liveness verifier.
func NewVerifier(repo Repository, prober Prober, cfg VerifierConfig, m *metrics.Metrics, logger *zap.Logger) *Verifier {
	return &Verifier{
		repo:    repo,
		prober:  prober,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ResolveDomain picks the heartbeat domain from the explicit value, then the Origin
// header, then the Referer host.
func (h *Heartbeat) ResolveDomain() string {
	for _, candidate := range []string{h.Domain, h.Origin} {
		// sandboxed frames send a literal "null" origin
		if candidate == "null" {
			continue
		}

		if domain := NormalizeDomain(candidate); domain != "" {
			return domain
		}
	}

	if u, err := url.Parse(h.Referrer); err == nil && u.Host != "" {
		return NormalizeDomain(u.Host)
	}

	return ""
}

// RecordHeartbeat upserts the heartbeat's domain with the current time.
func (v *Verifier) RecordHeartbeat(ctx context.Context, hb *Heartbeat) (string, error) {
	domain := hb.ResolveDomain()
	if domain == "" {
		return "", ErrInvalidDomain
	}

	verification := &Verification{
		Domain:     domain,
		LastSeenAt: v.now(),
		Code:       hb.Code,
		Version:    hb.Version,
	}

	if err := v.repo.UpsertVerification(ctx, verification); err != nil {
		return "", fmt.Errorf("upsert verification for %q: %w", domain, err)
	}

	v.metrics.ObserveHeartbeat()

	return domain, nil
}

// Check runs the liveness tiers for domain: a fresh heartbeat first, then a fetch of
// the live page.
func (v *Verifier) Check(ctx context.Context, domain string) Status {
	domain = NormalizeDomain(domain)
	status := Status{Domain: domain, Method: MethodNone}

	if domain == "" || IsLocalhost(domain) {
		v.metrics.ObserveTrackerCheck(string(status.Method), false)

		return status
	}

	latest, err := v.repo.LatestVerification(ctx, Variants(domain)...)

	switch {
	case err == nil:
		status.LastSeen = latest.LastSeenAt

		if v.now().Sub(latest.LastSeenAt) <= v.cfg.Freshness {
			status.Installed = true
			status.Method = MethodHeartbeat
		}
	case !errors.Is(err, ErrNotFound):
		v.logger.Error("failed to load tracker verification",
			zap.String("domain", domain),
			zap.Error(err),
		)
	}

	if !status.Installed && v.prober.Probe(ctx, domain) {
		status.Installed = true
		status.Method = MethodHeuristic
	}

	v.metrics.ObserveTrackerCheck(string(status.Method), status.Installed)

	return status
}

// IsInstalled reports whether the snippet is live on domain.
func (v *Verifier) IsInstalled(ctx context.Context, domain string) bool {
	return v.Check(ctx, domain).Installed
}

// Prune removes verifications not seen within retention.
func (v *Verifier) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := v.repo.PruneVerifications(ctx, v.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune verifications: %w", err)
	}

	return removed, nil
}
