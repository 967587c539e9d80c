package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"go.uber.org/zap"
)

// LinkHandler serves the owner facing link registry and stats.
type LinkHandler struct {
	issuer     *attribution.Issuer
	links      attribution.LinkRepository
	aggregator *attribution.Aggregator
	baseURL    string
	logger     *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(
	issuer *attribution.Issuer,
	links attribution.LinkRepository,
	aggregator *attribution.Aggregator,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		issuer:     issuer,
		links:      links,
		aggregator: aggregator,
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (h *LinkHandler) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.issuer.Issue(ctx, owner, req.Body.URL)
	if err != nil {
		if errors.Is(err, attribution.ErrInvalidDestination) {
			return nil, huma.Error400BadRequest("invalid destination url: must be an absolute http or https url")
		}

		h.logger.Error("failed to issue link", zap.String("owner", string(owner)), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to save link")
	}

	out := h.linkOutput(link)

	return &CreateLinkResponse{
		Status:   http.StatusCreated,
		Location: out.TrackingURL,
		Body:     out,
	}, nil
}

func (h *LinkHandler) ListLinks(ctx context.Context, _ *struct{}) (*ListLinksResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	links, err := h.links.ListByOwner(ctx, owner)
	if err != nil {
		h.logger.Error("failed to list links", zap.String("owner", string(owner)), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to list links")
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkOutput, 0, len(links))

	for i := range links {
		resp.Body.Links = append(resp.Body.Links, h.linkOutput(&links[i]))
	}

	return resp, nil
}

// DeleteLink removes a link with its clicks and conversions.
func (h *LinkHandler) DeleteLink(ctx context.Context, req *LinkCodeRequest) (*struct{}, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	if err = h.links.Delete(ctx, attribution.Code(req.Code), owner); err != nil {
		if errors.Is(err, attribution.ErrNotFound) {
			return nil, huma.Error404NotFound("tracking link not found")
		}

		h.logger.Error("failed to delete link", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to delete link")
	}

	return nil, nil
}

func (h *LinkHandler) LinkStats(ctx context.Context, req *LinkCodeRequest) (*LinkStatsResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := h.aggregator.AggregateByCode(ctx, attribution.Code(req.Code), owner)
	if err != nil {
		if errors.Is(err, attribution.ErrNotFound) {
			return nil, huma.Error404NotFound("tracking link not found")
		}

		h.logger.Error("failed to aggregate link stats", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to aggregate stats")
	}

	return &LinkStatsResponse{Body: linkStatsOutput(stats)}, nil
}

func (h *LinkHandler) OwnerStats(ctx context.Context, _ *struct{}) (*OwnerStatsResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := h.aggregator.OwnerSummary(ctx, owner)
	if err != nil {
		h.logger.Error("failed to aggregate owner stats", zap.String("owner", string(owner)), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to aggregate stats")
	}

	resp := &OwnerStatsResponse{}
	resp.Body.SummaryOutput = summaryOutput(stats.Summary)
	resp.Body.Links = make([]LinkStatsOutput, 0, len(stats.Links))

	for i := range stats.Links {
		resp.Body.Links = append(resp.Body.Links, linkStatsOutput(&stats.Links[i]))
	}

	return resp, nil
}

func (h *LinkHandler) linkOutput(link *attribution.Link) LinkOutput {
	return LinkOutput{
		Code:           string(link.Code),
		TrackingURL:    fmt.Sprintf("%s/%s", h.baseURL, link.Code),
		DestinationURL: link.DestinationURL,
		CreatedAt:      link.CreatedAt,
	}
}

func linkStatsOutput(stats *attribution.LinkStats) LinkStatsOutput {
	return LinkStatsOutput{
		Code:          string(stats.Link.Code),
		SummaryOutput: summaryOutput(stats.Summary),
	}
}

func summaryOutput(s attribution.Summary) SummaryOutput {
	return SummaryOutput{
		UniqueClicks:   s.UniqueClicks,
		TotalClicks:    s.TotalClicks,
		Leads:          s.Leads,
		Sales:          s.Sales,
		SalesRevenue:   s.SalesRevenue.Float64(),
		ConversionRate: s.ConversionRate,
	}
}
