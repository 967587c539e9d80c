package tracker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
)

func serve(t *testing.T, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tracker.UserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return strings.TrimPrefix(srv.URL, "http://")
}

func TestHTTPProber_Probe(t *testing.T) {
	ctx := context.Background()
	prober := tracker.NewHTTPProber(2*time.Second, tracker.WithPrivateNetworks())

	t.Run("finds the snippet over http after https fails", func(t *testing.T) {
		host := serve(t, `<html><script>window.AffiliateTracker = {};</script></html>`)

		assert.True(t, prober.Probe(ctx, host))
	})

	t.Run("matches every indicator", func(t *testing.T) {
		for _, indicator := range tracker.Indicators {
			host := serve(t, `<script src="https://cdn.example/`+strings.ToUpper(indicator)+`"></script>`)

			assert.True(t, prober.Probe(ctx, host), indicator)
		}
	})

	t.Run("plain pages do not match", func(t *testing.T) {
		host := serve(t, `<html><body>Welcome to the shop</body></html>`)

		assert.False(t, prober.Probe(ctx, host))
	})

	t.Run("ignores markup beyond the size cap", func(t *testing.T) {
		host := serve(t, strings.Repeat("a", 1<<20)+"tracker.js")

		assert.False(t, prober.Probe(ctx, host))
	})

	t.Run("unreachable hosts do not match", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		host := strings.TrimPrefix(srv.URL, "http://")
		srv.Close()

		assert.False(t, prober.Probe(ctx, host))
	})

	t.Run("slow hosts time out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}

			_, _ = w.Write([]byte("tracker.js"))
		}))
		t.Cleanup(srv.Close)

		fast := tracker.NewHTTPProber(100*time.Millisecond, tracker.WithPrivateNetworks())

		assert.False(t, fast.Probe(ctx, strings.TrimPrefix(srv.URL, "http://")))
	})
}

func TestHTTPProber_Redirects(t *testing.T) {
	ctx := context.Background()
	prober := tracker.NewHTTPProber(2*time.Second, tracker.WithPrivateNetworks())

	target := serve(t, "tracker.js")

	t.Run("follows a short redirect chain", func(t *testing.T) {
		srv := httptest.NewServer(http.RedirectHandler("http://"+target+"/", http.StatusFound))
		t.Cleanup(srv.Close)

		assert.True(t, prober.Probe(ctx, strings.TrimPrefix(srv.URL, "http://")))
	})

	t.Run("gives up on long redirect chains", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/next", http.StatusFound)
		}))
		t.Cleanup(srv.Close)

		assert.False(t, prober.Probe(ctx, strings.TrimPrefix(srv.URL, "http://")))
	})
}

func TestHTTPProber_PublicOnly(t *testing.T) {
	ctx := context.Background()
	prober := tracker.NewHTTPProber(time.Second)

	t.Run("refuses loopback hosts", func(t *testing.T) {
		host := serve(t, "tracker.js")

		assert.False(t, prober.Probe(ctx, host))
	})

	t.Run("refuses redirects into internal networks", func(t *testing.T) {
		internal := serve(t, "tracker.js")
		srv := httptest.NewServer(http.RedirectHandler("http://"+internal+"/", http.StatusFound))
		t.Cleanup(srv.Close)

		assert.False(t, prober.Probe(ctx, strings.TrimPrefix(srv.URL, "http://")))
	})
}

func TestIsPublicAddress(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":         true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"10.1.2.3":        false,
		"172.16.0.1":      false,
		"192.168.1.1":     false,
		"169.254.169.254": false,
		"100.64.0.1":      false,
		"0.0.0.0":         false,
		"::1":             false,
		"fd00::1":         false,
		"fe80::1":         false,
		"::ffff:10.0.0.1": false,
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			addr, err := netip.ParseAddr(raw)
			require.NoError(t, err)

			assert.Equal(t, want, tracker.IsPublicAddress(addr))
		})
	}
}
