package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"go.uber.org/zap"
)

// ConversionHandler adapts every conversion transport onto one ingestion pipeline.
type ConversionHandler struct {
	ingester  *attribution.Ingester
	pageviews *attribution.PageviewVerifier
	logger    *zap.Logger
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(
	ingester *attribution.Ingester,
	pageviews *attribution.PageviewVerifier,
	logger *zap.Logger,
) *ConversionHandler {
	return &ConversionHandler{
		ingester:  ingester,
		pageviews: pageviews,
		logger:    logger,
	}
}

// TrackJSON ingests a JSON conversion. Unlike the other transports it reports failures
// with error statuses.
func (h *ConversionHandler) TrackJSON(ctx context.Context, req *JSONConversionRequest) (*ConversionResponse, error) {
	clickID := attribution.ParseClickID(rawValue(req.Body.ClickID))
	if clickID == 0 {
		clickID = attribution.ParseClickID(req.ClickCookie)
	}

	sig := &attribution.ConversionSignal{
		Transport:  attribution.TransportJSON,
		Code:       attribution.Code(req.Body.Code),
		CookieCode: attribution.Code(req.RefCookie),
		RawValue:   rawValue(req.Body.Value),
		VisitorID:  visitorFromContext(ctx, req.Body.VisitorID),
		OrderID:    req.Body.OrderID,
		Kind:       attribution.ParseKind(req.Body.Type),
		ClickID:    clickID,
	}

	result, err := h.ingester.Ingest(ctx, sig)
	if err != nil {
		switch {
		case errors.Is(err, attribution.ErrCodeRequired):
			return nil, huma.Error400BadRequest("attribution code is required")
		case errors.Is(err, attribution.ErrNotFound):
			return nil, huma.Error404NotFound("tracking link not found")
		default:
			h.logger.Error("failed to ingest conversion",
				zap.String("transport", string(sig.Transport)),
				zap.Error(err),
			)

			return nil, huma.Error500InternalServerError("failed to record conversion")
		}
	}

	return &ConversionResponse{Body: conversionOutput(result)}, nil
}

// TrackQuery ingests a conversion from query params. It always answers 200; failures
// are reported with success set to false.
func (h *ConversionHandler) TrackQuery(ctx context.Context, req *ConversionQuery) (*ConversionResponse, error) {
	result, err := h.ingester.Ingest(ctx, h.querySignal(ctx, attribution.TransportQuery, req))
	if err != nil {
		h.logIngestFailure(attribution.TransportQuery, err)

		return &ConversionResponse{Body: ConversionOutput{Error: failureReason(err)}}, nil
	}

	return &ConversionResponse{Body: conversionOutput(result)}, nil
}

// TrackPixel ingests a conversion from an image pixel. It always answers with the GIF.
func (h *ConversionHandler) TrackPixel(ctx context.Context, req *ConversionQuery) (*PixelResponse, error) {
	if _, err := h.ingester.Ingest(ctx, h.querySignal(ctx, attribution.TransportPixel, req)); err != nil {
		h.logIngestFailure(attribution.TransportPixel, err)
	}

	return newPixelResponse(), nil
}

// TrackCookiePixel ingests a conversion attributed by the aff_ref cookie alone.
func (h *ConversionHandler) TrackCookiePixel(ctx context.Context, req *ConversionQuery) (*PixelResponse, error) {
	sig := h.querySignal(ctx, attribution.TransportCookiePixel, req)
	sig.Code = ""

	if _, err := h.ingester.Ingest(ctx, sig); err != nil {
		h.logIngestFailure(attribution.TransportCookiePixel, err)
	}

	return newPixelResponse(), nil
}

// Pageview confirms that a landing page view carries a valid attribution. It never
// records anything.
func (h *ConversionHandler) Pageview(ctx context.Context, req *PageviewRequest) (*PageviewResponse, error) {
	code := req.Ref
	if code == "" {
		code = req.RefCookie
	}

	clickID := attribution.ParseClickID(req.ClickID)
	if clickID == 0 {
		clickID = attribution.ParseClickID(req.ClickCookie)
	}

	resp := &PageviewResponse{}

	view, err := h.pageviews.Verify(ctx, attribution.Code(code), clickID)
	if err != nil {
		if !errors.Is(err, attribution.ErrNotFound) && !errors.Is(err, attribution.ErrCodeRequired) {
			h.logger.Error("failed to verify page view", zap.String("code", code), zap.Error(err))
		}

		resp.Body.Error = failureReason(err)

		return resp, nil
	}

	resp.Body.Success = true
	resp.Body.Code = string(view.Link.Code)
	resp.Body.ClickID = int64(view.ClickID)
	resp.Body.ClickVerified = view.ClickID != 0

	return resp, nil
}

func (h *ConversionHandler) querySignal(
	ctx context.Context, transport attribution.Transport, req *ConversionQuery,
) *attribution.ConversionSignal {
	clickID := attribution.ParseClickID(req.ClickID)
	if clickID == 0 {
		clickID = attribution.ParseClickID(req.ClickCookie)
	}

	return &attribution.ConversionSignal{
		Transport:  transport,
		Code:       attribution.Code(req.Ref),
		CookieCode: attribution.Code(req.RefCookie),
		RawValue:   req.Value,
		VisitorID:  visitorFromContext(ctx, req.VisitorID),
		OrderID:    req.OrderID,
		Kind:       attribution.ParseKind(req.Type),
		ClickID:    clickID,
	}
}

func (h *ConversionHandler) logIngestFailure(transport attribution.Transport, err error) {
	if errors.Is(err, attribution.ErrCodeRequired) || errors.Is(err, attribution.ErrNotFound) {
		h.logger.Debug("conversion signal ignored",
			zap.String("transport", string(transport)),
			zap.Error(err),
		)

		return
	}

	h.logger.Error("failed to ingest conversion",
		zap.String("transport", string(transport)),
		zap.Error(err),
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, attribution.ErrCodeRequired):
		return "attribution code is required"
	case errors.Is(err, attribution.ErrNotFound):
		return "tracking link not found"
	default:
		return "failed to record conversion"
	}
}

func conversionOutput(result *attribution.ConversionResult) ConversionOutput {
	return ConversionOutput{
		Success:           true,
		ConversionID:      int64(result.ConversionID),
		Duplicate:         result.Duplicate,
		ProbableDuplicate: result.ProbableDuplicate,
		Kind:              string(result.Kind),
		Amount:            result.Amount.Float64(),
	}
}

// rawValue renders a loosely typed JSON value as text.
func rawValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
