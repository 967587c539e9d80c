package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
)

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for attribution and analytics.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
	Origin    string
	// VisitorID is the client supplied visitor id, if any.
	VisitorID string
	// OwnerID is the authenticated owner forwarded by the session gateway.
	OwnerID string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// requireOwner returns the authenticated owner or a 401.
func requireOwner(ctx context.Context) (attribution.OwnerID, error) {
	owner := RequestMetaFromContext(ctx).OwnerID
	if owner == "" {
		return "", huma.Error401Unauthorized("owner identity required")
	}

	return attribution.OwnerID(owner), nil
}

func visitorFromContext(ctx context.Context, explicit string) attribution.VisitorID {
	meta := RequestMetaFromContext(ctx)
	if explicit == "" {
		explicit = meta.VisitorID
	}

	return attribution.ResolveVisitorID(explicit, meta.ClientIP, meta.UserAgent)
}
