package container

import (
	"fmt"
	"strings"
	"time"

	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
)

// Options are the service options. Every option can be set by flag or by a SERVICE_*
// environment variable.
type Options struct {
	Port        int    `default:"8888"    help:"Port to listen on"                                      short:"p"`
	BaseURL     string `help:"Public base URL of tracking links (default http://localhost:<port>)"`
	DatabaseURL string `help:"PostgreSQL connection URL; empty keeps everything in memory"        short:"d"`
	RedisAddr   string `help:"Redis server address; empty uses in-process messaging and rate limiting" short:"r"`
	LogFormat   string `default:"console" help:"Log format: console or json"`
	CodeLength  int    `default:"8"       help:"Length of generated attribution codes"              short:"c"`

	CookieDomain string `help:"Root domain attribution cookies are shared with; empty means host-only"`
	CookieSecure bool   `default:"false" help:"Mark attribution cookies Secure"`

	ClickDedupWindowMs       int `default:"1000" help:"Window collapsing repeated clicks of one visitor, in milliseconds"`
	ConversionDedupWindowSec int `default:"5"    help:"Window flagging conversions without order id as probable duplicates, in seconds"`
	HeartbeatFreshnessMin    int `default:"10"   help:"Age under which a tracker heartbeat proves installation, in minutes"`
	ProbeTimeoutSec          int `default:"5"    help:"Timeout of each tracker page fetch, in seconds"`
	LinkCacheTTLMin          int `default:"60"   help:"Redis link cache TTL, in minutes"`
	TrackerRetentionDays     int `default:"30"   help:"Age after which tracker verifications are pruned, in days"`
}

// PublicBaseURL returns the base URL used in tracking links.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return strings.TrimSuffix(o.BaseURL, "/")
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// UseRedis reports whether Redis backs messaging, rate limiting and the link cache.
func (o *Options) UseRedis() bool {
	return o.RedisAddr != ""
}

// UsePostgres reports whether links, clicks, conversions and verifications are persisted.
func (o *Options) UsePostgres() bool {
	return o.DatabaseURL != ""
}

func (o *Options) clickRecorderConfig() attribution.ClickRecorderConfig {
	cfg := attribution.DefaultClickRecorderConfig()
	cfg.DedupWindow = time.Duration(o.ClickDedupWindowMs) * time.Millisecond

	return cfg
}

func (o *Options) ingesterConfig() attribution.IngesterConfig {
	return attribution.IngesterConfig{
		DedupWindow: time.Duration(o.ConversionDedupWindowSec) * time.Second,
	}
}

func (o *Options) verifierConfig() tracker.VerifierConfig {
	return tracker.VerifierConfig{
		Freshness: time.Duration(o.HeartbeatFreshnessMin) * time.Minute,
	}
}

func (o *Options) cookieConfig() attribution.CookieConfig {
	return attribution.CookieConfig{
		Domain: o.CookieDomain,
		Secure: o.CookieSecure,
	}
}

func (o *Options) probeTimeout() time.Duration {
	return time.Duration(o.ProbeTimeoutSec) * time.Second
}

func (o *Options) linkCacheTTL() time.Duration {
	return time.Duration(o.LinkCacheTTLMin) * time.Minute
}

func (o *Options) trackerRetention() time.Duration {
	return time.Duration(o.TrackerRetentionDays) * 24 * time.Hour
}
