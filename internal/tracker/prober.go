package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"
)

const (
	// UserAgent identifies the prober to site operators.
	UserAgent = "AffiliateTrackerVerifier/1.0 (+tracker installation check)"

	maxProbeBody = 1 << 20

	// MaxProbeRedirects is the number of redirects followed per fetch.
	MaxProbeRedirects = 3
)

// ErrNonPublicAddress is returned by the prober dialer for internal destinations.
var ErrNonPublicAddress = errors.New("non-public address")

// carrier-grade NAT range, not covered by netip.Addr.IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Indicators are the lower-case markers that reveal an installed snippet.
var Indicators = []string{
	"tracker.js",
	"affiliate-tracker.js",
	"affiliatetrackerconfig",
	"window.affiliatetracker",
	"/api/track/",
}

// Prober looks for the tracking snippet on a live page.
type Prober interface {
	Probe(ctx context.Context, domain string) bool
}

// HTTPProber fetches the domain root over https, then http, and scans the markup.
// By default it only connects to public addresses, including after redirects.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// ProberOption tunes an HTTPProber.
type ProberOption func(*proberOptions)

type proberOptions struct {
	allowPrivate bool
}

// WithPrivateNetworks lets the prober reach loopback and private addresses.
func WithPrivateNetworks() ProberOption {
	return func(o *proberOptions) {
		o.allowPrivate = true
	}
}

// NewHTTPProber creates a prober with a per-attempt timeout.
func NewHTTPProber(timeout time.Duration, opts ...ProberOption) *HTTPProber {
	var o proberOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: timeout}
	if !o.allowPrivate {
		dialer.Control = rejectNonPublic
	}

	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > MaxProbeRedirects {
					return fmt.Errorf("stopped after %d redirects", MaxProbeRedirects)
				}

				return nil
			},
		},
		timeout: timeout,
	}
}

// IsPublicAddress reports whether addr is routable on the public internet.
func IsPublicAddress(addr netip.Addr) bool {
	addr = addr.Unmap()

	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified() &&
		!sharedAddressSpace.Contains(addr)
}

// rejectNonPublic runs after name resolution, so it also covers DNS names
// pointing at internal hosts.
func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}

	if !IsPublicAddress(addr) {
		return fmt.Errorf("dial %s: %w", addr, ErrNonPublicAddress)
	}

	return nil
}

// Probe reports whether any indicator appears on the domain's home page. Fetch
// failures count as no match.
func (p *HTTPProber) Probe(ctx context.Context, domain string) bool {
	for _, scheme := range []string{"https", "http"} {
		if ctx.Err() != nil {
			return false
		}

		body, ok := p.fetch(ctx, scheme+"://"+domain+"/")
		if ok && containsIndicator(body) {
			return true
		}
	}

	return false
}

func (p *HTTPProber) fetch(ctx context.Context, target string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", false
	}

	return string(body), true
}

func containsIndicator(body string) bool {
	body = strings.ToLower(body)

	for _, indicator := range Indicators {
		if strings.Contains(body, indicator) {
			return true
		}
	}

	return false
}
