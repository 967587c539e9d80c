package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/handlers"
)

const (
	// VisitorHeader carries a client supplied visitor id.
	VisitorHeader = "X-Visitor-ID"
	// OwnerHeader carries the authenticated owner forwarded by the session gateway.
	OwnerHeader = "X-Owner-ID"
)

// RequestMeta is a middleware that adds client IP, user-agent, referrer, origin and the
// visitor and owner identities to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
			Origin:    ctx.Header("Origin"),
			VisitorID: strings.TrimSpace(ctx.Header(VisitorHeader)),
			OwnerID:   strings.TrimSpace(ctx.Header(OwnerHeader)),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// ClientIP extracts the client IP, preferring proxy headers over the peer address.
func ClientIP(ctx huma.Context) string {
	// first entry is the original client
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
