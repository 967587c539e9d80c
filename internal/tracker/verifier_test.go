package tracker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
	"go.uber.org/zap"
)

type stubProber struct {
	found bool
	calls atomic.Int32
}

func (s *stubProber) Probe(_ context.Context, _ string) bool {
	s.calls.Add(1)

	return s.found
}

func newVerifier(s *store.MemoryStore, prober tracker.Prober) *tracker.Verifier {
	return tracker.NewVerifier(s, prober, tracker.DefaultVerifierConfig(), nil, zap.NewNop())
}

func TestVerifier_RecordHeartbeat(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		hb   tracker.Heartbeat
		want string
	}{
		{name: "explicit domain", hb: tracker.Heartbeat{Domain: "https://Shop.Example:8443/cart"}, want: "shop.example"},
		{name: "origin header", hb: tracker.Heartbeat{Origin: "https://shop.example"}, want: "shop.example"},
		{
			name: "referer host",
			hb:   tracker.Heartbeat{Referrer: "https://www.shop.example/product/1?x=1"},
			want: "www.shop.example",
		},
		{
			name: "null origin falls through to referer",
			hb:   tracker.Heartbeat{Origin: "null", Referrer: "https://shop.example/"},
			want: "shop.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()

			domain, err := newVerifier(s, &stubProber{}).RecordHeartbeat(ctx, &tt.hb)

			require.NoError(t, err)
			assert.Equal(t, tt.want, domain)

			_, err = s.LatestVerification(ctx, tt.want)
			assert.NoError(t, err)
		})
	}

	t.Run("no domain is invalid", func(t *testing.T) {
		_, err := newVerifier(store.NewMemoryStore(), &stubProber{}).RecordHeartbeat(ctx, &tracker.Heartbeat{Referrer: "not a url"})

		assert.ErrorIs(t, err, tracker.ErrInvalidDomain)
	})

	t.Run("keeps code and version", func(t *testing.T) {
		s := store.NewMemoryStore()

		_, err := newVerifier(s, &stubProber{}).RecordHeartbeat(ctx, &tracker.Heartbeat{
			Domain: "shop.example", Code: "AB12CD34", Version: "1.4.0",
		})
		require.NoError(t, err)

		got, err := s.LatestVerification(ctx, "shop.example")
		require.NoError(t, err)
		assert.Equal(t, "AB12CD34", got.Code)
		assert.Equal(t, "1.4.0", got.Version)
	})
}

func TestVerifier_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("localhost is never installed and never probed", func(t *testing.T) {
		prober := &stubProber{found: true}
		v := newVerifier(store.NewMemoryStore(), prober)

		for _, domain := range []string{"localhost", "http://127.0.0.1:3000", "app.localhost"} {
			status := v.Check(ctx, domain)

			assert.False(t, status.Installed, domain)
			assert.Equal(t, tracker.MethodNone, status.Method)
		}

		assert.Zero(t, prober.calls.Load())
	})

	t.Run("fresh heartbeat proves installation without probing", func(t *testing.T) {
		s := store.NewMemoryStore()
		prober := &stubProber{}
		v := newVerifier(s, prober)

		_, err := v.RecordHeartbeat(ctx, &tracker.Heartbeat{Domain: "shop.example"})
		require.NoError(t, err)

		status := v.Check(ctx, "https://shop.example/")

		assert.True(t, status.Installed)
		assert.Equal(t, tracker.MethodHeartbeat, status.Method)
		assert.False(t, status.LastSeen.IsZero())
		assert.Zero(t, prober.calls.Load())
	})

	t.Run("heartbeat on the www variant counts", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.UpsertVerification(ctx, &tracker.Verification{Domain: "www.shop.example", LastSeenAt: time.Now()}))

		assert.True(t, newVerifier(s, &stubProber{}).IsInstalled(ctx, "shop.example"))
	})

	t.Run("stale heartbeat falls back to the prober", func(t *testing.T) {
		s := store.NewMemoryStore()
		seen := time.Now().Add(-time.Hour)
		require.NoError(t, s.UpsertVerification(ctx, &tracker.Verification{Domain: "shop.example", LastSeenAt: seen}))
		prober := &stubProber{found: true}

		status := newVerifier(s, prober).Check(ctx, "shop.example")

		assert.True(t, status.Installed)
		assert.Equal(t, tracker.MethodHeuristic, status.Method)
		assert.True(t, status.LastSeen.Equal(seen))
		assert.Equal(t, int32(1), prober.calls.Load())
	})

	t.Run("nothing found is not installed", func(t *testing.T) {
		status := newVerifier(store.NewMemoryStore(), &stubProber{}).Check(ctx, "shop.example")

		assert.False(t, status.Installed)
		assert.Equal(t, tracker.MethodNone, status.Method)
		assert.True(t, status.LastSeen.IsZero())
	})
}

func TestVerifier_Prune(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertVerification(ctx, &tracker.Verification{Domain: "old.example", LastSeenAt: time.Now().Add(-40 * 24 * time.Hour)}))
	require.NoError(t, s.UpsertVerification(ctx, &tracker.Verification{Domain: "new.example", LastSeenAt: time.Now()}))

	removed, err := newVerifier(s, &stubProber{}).Prune(ctx, 30*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
