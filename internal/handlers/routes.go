package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/ratelimit"
)

var (
	// pixels must always render, whatever the traffic
	pixelLimits  = map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true}}
	ingestLimits = map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeIngest}}
)

// RegisterRoutes registers the redirect, ingestion and owner routes with per-endpoint
// rate limit configuration.
func RegisterRoutes(
	api huma.API,
	redirects *RedirectHandler,
	conversions *ConversionHandler,
	trackers *TrackerHandler,
	links *LinkHandler,
) {
	registerIngestRoutes(api, conversions, trackers)
	registerOwnerRoutes(api, trackers, links)

	// GET /{code} - Follow a tracking link
	// Relaxed limits for high-traffic redirects
	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Follow tracking link",
		Description: "Records the click, sets attribution cookies and redirects to the destination.",
		Tags:        []string{"Redirect"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 1000}, // 1000 per minute
				},
			},
		},
	}, redirects.Redirect)
}

func registerIngestRoutes(api huma.API, conversions *ConversionHandler, trackers *TrackerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "track-conversion",
		Method:      http.MethodPost,
		Path:        "/api/track/conversion",
		Summary:     "Track conversion",
		Description: "Records a lead or sale posted by the tracker snippet. Accepts text/plain JSON from sendBeacon.",
		Tags:        []string{"Tracking"},
		Metadata:    ingestLimits,
	}, conversions.TrackJSON)

	huma.Register(api, huma.Operation{
		OperationID: "track-conversion-query",
		Method:      http.MethodGet,
		Path:        "/api/track/conversion",
		Summary:     "Track conversion from query",
		Description: "Records a conversion from query params. Always answers 200.",
		Tags:        []string{"Tracking"},
		Metadata:    ingestLimits,
	}, conversions.TrackQuery)

	huma.Register(api, huma.Operation{
		OperationID: "track-conversion-pixel",
		Method:      http.MethodGet,
		Path:        "/api/track/pixel.gif",
		Summary:     "Conversion pixel",
		Tags:        []string{"Tracking"},
		Metadata:    pixelLimits,
		Responses: map[string]*huma.Response{
			"200": {Description: "Transparent 1x1 GIF", Content: map[string]*huma.MediaType{"image/gif": {}}},
		},
	}, conversions.TrackPixel)

	huma.Register(api, huma.Operation{
		OperationID: "track-conversion-cookie-pixel",
		Method:      http.MethodGet,
		Path:        "/api/track/cookie-pixel.gif",
		Summary:     "Cookie attributed conversion pixel",
		Tags:        []string{"Tracking"},
		Metadata:    pixelLimits,
		Responses: map[string]*huma.Response{
			"200": {Description: "Transparent 1x1 GIF", Content: map[string]*huma.MediaType{"image/gif": {}}},
		},
	}, conversions.TrackCookiePixel)

	huma.Register(api, huma.Operation{
		OperationID: "track-pageview",
		Method:      http.MethodGet,
		Path:        "/api/track/pageview",
		Summary:     "Verify landing page view",
		Description: "Checks the attribution of a landing page view without recording a click.",
		Tags:        []string{"Tracking"},
		Metadata:    ingestLimits,
	}, conversions.Pageview)

	huma.Register(api, huma.Operation{
		OperationID: "tracker-heartbeat",
		Method:      http.MethodPost,
		Path:        "/api/tracker/heartbeat",
		Summary:     "Tracker heartbeat",
		Tags:        []string{"Tracker"},
		Metadata:    ingestLimits,
	}, trackers.Heartbeat)

	huma.Register(api, huma.Operation{
		OperationID: "tracker-heartbeat-pixel",
		Method:      http.MethodGet,
		Path:        "/api/tracker/heartbeat.gif",
		Summary:     "Tracker heartbeat beacon",
		Tags:        []string{"Tracker"},
		Metadata:    pixelLimits,
		Responses: map[string]*huma.Response{
			"200": {Description: "Transparent 1x1 GIF", Content: map[string]*huma.MediaType{"image/gif": {}}},
		},
	}, trackers.HeartbeatPixel)
}

func registerOwnerRoutes(api huma.API, trackers *TrackerHandler, links *LinkHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "tracker-verify",
		Method:      http.MethodGet,
		Path:        "/api/tracker/verify",
		Summary:     "Verify tracker installation",
		Description: "Checks heartbeats first, then scans the live page for the snippet.",
		Tags:        []string{"Tracker"},
	}, trackers.Verify)

	// Stricter limits for link minting
	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/api/links",
		Summary:       "Create tracking link",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 10},     // 10 per minute
					{Window: time.Hour, Max: 100},      // 100 per hour
					{Window: 24 * time.Hour, Max: 500}, // 500 per day
				},
			},
		},
	}, links.CreateLink)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List tracking links",
		Tags:        []string{"Links"},
	}, links.ListLinks)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-link",
		Method:        http.MethodDelete,
		Path:          "/api/links/{code}",
		Summary:       "Delete tracking link",
		Description:   "Deletes the link together with its clicks and conversions.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
	}, links.DeleteLink)

	huma.Register(api, huma.Operation{
		OperationID: "link-stats",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}/stats",
		Summary:     "Link stats",
		Tags:        []string{"Stats"},
	}, links.LinkStats)

	huma.Register(api, huma.Operation{
		OperationID: "owner-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Owner stats",
		Tags:        []string{"Stats"},
	}, links.OwnerStats)
}
