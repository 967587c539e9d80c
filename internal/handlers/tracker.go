package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
	"go.uber.org/zap"
)

// TrackerHandler accepts snippet heartbeats and answers liveness checks.
type TrackerHandler struct {
	verifier *tracker.Verifier
	logger   *zap.Logger
}

// NewTrackerHandler creates a new tracker handler.
func NewTrackerHandler(verifier *tracker.Verifier, logger *zap.Logger) *TrackerHandler {
	return &TrackerHandler{verifier: verifier, logger: logger}
}

// Heartbeat records a JSON heartbeat from the snippet. The domain falls back to the
// Origin, then the Referer host; 400 when none yields a domain.
func (h *TrackerHandler) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	meta := RequestMetaFromContext(ctx)

	domain, err := h.verifier.RecordHeartbeat(ctx, &tracker.Heartbeat{
		Domain:   req.Body.Domain,
		Origin:   meta.Origin,
		Referrer: meta.Referrer,
		Code:     req.Body.Code,
		Version:  req.Body.Version,
	})
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidDomain) {
			return nil, huma.Error400BadRequest("domain could not be determined")
		}

		h.logger.Error("failed to record heartbeat", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to record heartbeat")
	}

	resp := &HeartbeatResponse{}
	resp.Body.Success = true
	resp.Body.Domain = domain

	return resp, nil
}

// HeartbeatPixel records a beacon heartbeat. It always answers with the GIF.
func (h *TrackerHandler) HeartbeatPixel(ctx context.Context, req *HeartbeatPixelRequest) (*PixelResponse, error) {
	meta := RequestMetaFromContext(ctx)

	_, err := h.verifier.RecordHeartbeat(ctx, &tracker.Heartbeat{
		Domain:   req.Domain,
		Origin:   meta.Origin,
		Referrer: meta.Referrer,
		Code:     req.Code,
		Version:  req.Version,
	})
	if err != nil && !errors.Is(err, tracker.ErrInvalidDomain) {
		h.logger.Error("failed to record heartbeat", zap.Error(err))
	}

	return newPixelResponse(), nil
}

// Verify reports whether the snippet is live on a domain.
func (h *TrackerHandler) Verify(ctx context.Context, req *VerifyTrackerRequest) (*VerifyTrackerResponse, error) {
	if _, err := requireOwner(ctx); err != nil {
		return nil, err
	}

	status := h.verifier.Check(ctx, req.Domain)
	if status.Domain == "" {
		return nil, huma.Error400BadRequest("invalid domain")
	}

	resp := &VerifyTrackerResponse{}
	resp.Body.Domain = status.Domain
	resp.Body.Installed = status.Installed
	resp.Body.Method = string(status.Method)

	if !status.LastSeen.IsZero() {
		lastSeen := status.LastSeen
		resp.Body.LastSeen = &lastSeen
	}

	return resp, nil
}
