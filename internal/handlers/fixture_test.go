package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/handlers"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/middleware"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
	"go.uber.org/zap"
)

// noopPublish returns a publish function that always succeeds.
func noopPublish[T any]() messaging.Publish[T] {
	return func(_ *T) error { return nil }
}

type stubProber struct {
	found bool
}

func (s *stubProber) Probe(_ context.Context, _ string) bool {
	return s.found
}

type fixture struct {
	store  *store.MemoryStore
	router *chi.Mux
	prober *stubProber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := store.NewMemoryStore()
	logger := zap.NewNop()
	prober := &stubProber{}

	recorder := attribution.NewClickRecorder(
		s, s, attribution.DefaultClickRecorderConfig(), noopPublish[analytics.ClickRecordedEvent](), nil, logger,
	)
	ingester := attribution.NewIngester(
		s, s, s, attribution.DefaultIngesterConfig(), noopPublish[analytics.ConversionRecordedEvent](), nil, logger,
	)
	verifier := tracker.NewVerifier(s, prober, tracker.DefaultVerifierConfig(), nil, logger)
	codes := []string{"NEWCODE1", "NEWCODE2", "NEWCODE3"}
	issued := 0
	issuer := attribution.NewIssuer(s, func() string {
		code := codes[min(issued, len(codes)-1)]
		issued++

		return code
	})

	router := chi.NewMux()
	api := humachi.New(router, handlers.NewAPIConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api))

	handlers.RegisterRoutes(api,
		handlers.NewRedirectHandler(recorder, attribution.CookieConfig{}, logger),
		handlers.NewConversionHandler(ingester, attribution.NewPageviewVerifier(s, s), logger),
		handlers.NewTrackerHandler(verifier, logger),
		handlers.NewLinkHandler(issuer, s, attribution.NewAggregator(s, s, s), "http://localhost:8888", logger),
	)

	return &fixture{store: s, router: router, prober: prober}
}

// do sends a request through the router. Headers are given as "Name: value" pairs.
func (f *fixture) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, h := range headers {
		name, value, _ := strings.Cut(h, ":")
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	return w
}

func (f *fixture) seedLink(t *testing.T, code, owner string) *attribution.Link {
	t.Helper()

	link := &attribution.Link{
		Code:           attribution.Code(code),
		DestinationURL: "https://shop.example/product?id=7",
		OwnerID:        attribution.OwnerID(owner),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, f.store.Save(context.Background(), link))

	return link
}

func (f *fixture) conversionTotals(t *testing.T, link *attribution.Link) attribution.ConversionTotals {
	t.Helper()

	totals, err := f.store.SumConversions(context.Background(), link.ID)
	require.NoError(t, err)

	return totals
}

func (f *fixture) clickCounts(t *testing.T, link *attribution.Link) attribution.ClickCounts {
	t.Helper()

	counts, err := f.store.CountClicks(context.Background(), link.ID)
	require.NoError(t, err)

	return counts
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}

	return "", false
}

func assertPixel(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	require.Len(t, w.Body.Bytes(), 43)
}
