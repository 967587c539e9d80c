package attribution

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a link, click or conversion does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCodeRequired is returned when a conversion carries no attribution code.
	ErrCodeRequired = errors.New("attribution code is required")
	// ErrDuplicate is returned by stores when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrOrderIDUnsupported is returned by stores whose schema has no order_id column.
	ErrOrderIDUnsupported = errors.New("order id column unavailable")
	// ErrInvalidDestination is returned for destination URLs that cannot be redirected to.
	ErrInvalidDestination = errors.New("invalid destination url")
)

// Code is the opaque attribution code embedded in a tracking link.
type Code string

// LinkID identifies a stored link.
type LinkID int64

// ClickID identifies a stored click. Zero means "no click".
type ClickID int64

// ConversionID identifies a stored conversion.
type ConversionID int64

// OwnerID references the user that owns a link.
type OwnerID string

// VisitorID is an approximate visitor fingerprint used for dedup heuristics only.
type VisitorID string

// Link is an advertiser destination owned by a user.
type Link struct {
	ID             LinkID
	Code           Code
	DestinationURL string
	OwnerID        OwnerID
	CreatedAt      time.Time
}

// Click is one observed visit through a link's redirect.
type Click struct {
	ID        ClickID
	LinkID    LinkID
	VisitorID VisitorID
	IP        string
	CreatedAt time.Time
}

// Kind classifies a conversion.
type Kind string

const (
	KindSale Kind = "sale"
	KindLead Kind = "lead"
)

// ParseKind maps an event type signal to a Kind. Only explicit intent signals
// produce a lead; everything else is a sale.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lead", "signup", "button", "intent":
		return KindLead
	default:
		return KindSale
	}
}

// Conversion is a lead or sale attributed to a link.
type Conversion struct {
	ID        ConversionID
	LinkID    LinkID
	ClickID   ClickID
	VisitorID VisitorID
	Amount    Amount
	OrderID   string
	Kind      Kind
	CreatedAt time.Time
}
