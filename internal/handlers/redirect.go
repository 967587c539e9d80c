package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"go.uber.org/zap"
)

// RedirectHandler follows tracking links.
type RedirectHandler struct {
	recorder *attribution.ClickRecorder
	cookies  attribution.CookieConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(recorder *attribution.ClickRecorder, cookies attribution.CookieConfig, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		recorder: recorder,
		cookies:  cookies,
		logger:   logger,
		now:      time.Now,
	}
}

// Redirect records the click and sends the visitor to the destination. It answers 302
// so browsers come back through the tracker on every visit.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	code := attribution.Code(req.Code)
	meta := RequestMetaFromContext(ctx)

	click, err := h.recorder.Record(ctx, code, visitorFromContext(ctx, ""), meta.ClientIP)
	if err != nil {
		if errors.Is(err, attribution.ErrNotFound) {
			return nil, huma.Error404NotFound("tracking link not found")
		}

		h.logger.Error("failed to resolve tracking link",
			zap.String("code", req.Code),
			zap.Error(err),
		)

		return nil, huma.Error500InternalServerError("failed to resolve tracking link")
	}

	now := h.now()
	cookies := []http.Cookie{*attribution.AttributionCookie(code, h.cookies, now)}

	if click.ClickID != 0 {
		cookies = append(cookies, *attribution.ClickIDCookie(click.ClickID, h.cookies, now))
	}

	return &RedirectResponse{
		Status:       http.StatusFound,
		Location:     attribution.BuildRedirectTarget(click.Link.DestinationURL, code, click.ClickID),
		CacheControl: "no-store",
		SetCookie:    cookies,
	}, nil
}
