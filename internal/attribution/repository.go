package attribution

import (
	"context"
	"time"
)

// LinkRepository is the link registry.
type LinkRepository interface {
	Save(ctx context.Context, link *Link) error
	GetByCode(ctx context.Context, code Code) (*Link, error)
	ListByOwner(ctx context.Context, owner OwnerID) ([]Link, error)
	// Delete removes the link and, by cascade, its clicks and conversions.
	Delete(ctx context.Context, code Code, owner OwnerID) error
}

// ClickCounts holds click aggregates for one link.
type ClickCounts struct {
	Total  int64
	Unique int64
}

// ClickRepository persists clicks.
type ClickRepository interface {
	SaveClick(ctx context.Context, click *Click) error
	GetClick(ctx context.Context, id ClickID) (*Click, error)
	// FindRecentClick returns the newest click for (link, visitor) created at or after since.
	FindRecentClick(ctx context.Context, linkID LinkID, visitor VisitorID, since time.Time) (*Click, error)
	CountClicks(ctx context.Context, linkID LinkID) (ClickCounts, error)
}

// ConversionTotals holds conversion aggregates for one link.
type ConversionTotals struct {
	Leads        int64
	Sales        int64
	SalesRevenue Amount
}

// ConversionRepository persists conversions.
type ConversionRepository interface {
	// SaveConversion returns ErrDuplicate when (link, order id) already exists and
	// ErrOrderIDUnsupported when the schema cannot store an order id.
	SaveConversion(ctx context.Context, conversion *Conversion) error
	FindConversionByOrderID(ctx context.Context, linkID LinkID, orderID string) (*Conversion, error)
	// FindRecentConversion returns the newest conversion for the link created at or after since.
	FindRecentConversion(ctx context.Context, linkID LinkID, since time.Time) (*Conversion, error)
	SumConversions(ctx context.Context, linkID LinkID) (ConversionTotals, error)
}
