package attribution

import (
	"context"
	"fmt"
)

// Summary holds click and conversion aggregates.
type Summary struct {
	UniqueClicks int64
	TotalClicks  int64
	Leads        int64
	Sales        int64
	SalesRevenue Amount
	// ConversionRate is (leads + sales) / unique clicks, zero without clicks.
	ConversionRate float64
}

// LinkStats is the summary for a single link.
type LinkStats struct {
	Link Link
	Summary
}

// OwnerStats is the summary across all links of an owner.
type OwnerStats struct {
	Links []LinkStats
	Summary
}

// Aggregator computes stats from the stored click and conversion rows on every call.
type Aggregator struct {
	links       LinkRepository
	clicks      ClickRepository
	conversions ConversionRepository
}

// NewAggregator creates a stats aggregator.
func NewAggregator(links LinkRepository, clicks ClickRepository, conversions ConversionRepository) *Aggregator {
	return &Aggregator{
		links:       links,
		clicks:      clicks,
		conversions: conversions,
	}
}

// Aggregate returns the stats for link.
func (a *Aggregator) Aggregate(ctx context.Context, link *Link) (*LinkStats, error) {
	clicks, err := a.clicks.CountClicks(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}

	totals, err := a.conversions.SumConversions(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("sum conversions: %w", err)
	}

	stats := &LinkStats{
		Link: *link,
		Summary: Summary{
			UniqueClicks: clicks.Unique,
			TotalClicks:  clicks.Total,
			Leads:        totals.Leads,
			Sales:        totals.Sales,
			SalesRevenue: totals.SalesRevenue,
		},
	}
	stats.ConversionRate = conversionRate(stats.Summary)

	return stats, nil
}

// AggregateByCode returns the stats for the owner's link with code. Links of other
// owners are reported as ErrNotFound.
func (a *Aggregator) AggregateByCode(ctx context.Context, code Code, owner OwnerID) (*LinkStats, error) {
	link, err := a.links.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.OwnerID != owner {
		return nil, ErrNotFound
	}

	return a.Aggregate(ctx, link)
}

// OwnerSummary aggregates every link owned by owner.
func (a *Aggregator) OwnerSummary(ctx context.Context, owner OwnerID) (*OwnerStats, error) {
	links, err := a.links.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	out := &OwnerStats{Links: make([]LinkStats, 0, len(links))}

	for idx := range links {
		stats, err := a.Aggregate(ctx, &links[idx])
		if err != nil {
			return nil, err
		}

		out.Links = append(out.Links, *stats)
		out.UniqueClicks += stats.UniqueClicks
		out.TotalClicks += stats.TotalClicks
		out.Leads += stats.Leads
		out.Sales += stats.Sales
		out.SalesRevenue += stats.SalesRevenue
	}

	out.ConversionRate = conversionRate(out.Summary)

	return out, nil
}

func conversionRate(s Summary) float64 {
	if s.UniqueClicks == 0 {
		return 0
	}

	return float64(s.Leads+s.Sales) / float64(s.UniqueClicks)
}
