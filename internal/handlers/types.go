package handlers

import (
	"net/http"
	"time"
)

// RedirectRequest is the request for following a tracking link.
type RedirectRequest struct {
	Code string `doc:"The attribution code" example:"AB12CD34" path:"code"`
}

// RedirectResponse sends the visitor on to the destination with attribution cookies.
type RedirectResponse struct {
	Status       int
	Location     string        `doc:"Destination with attribution params" header:"Location"`
	CacheControl string        `header:"Cache-Control"`
	SetCookie    []http.Cookie `header:"Set-Cookie"`
}

// ConversionBody is the JSON conversion payload sent by the tracker snippet.
// Unknown fields are accepted.
type ConversionBody struct {
	_ struct{} `additionalProperties:"true"`

	Code      string `doc:"Attribution code; falls back to the aff_ref cookie" json:"code,omitempty"`
	Value     any    `doc:"Order value as number or formatted string"           json:"value,omitempty"`
	OrderID   string `doc:"Merchant order id used for deduplication"            json:"orderId,omitempty"`
	Type      string `doc:"Event type; lead, signup, button or intent count as leads" json:"type,omitempty"`
	ClickID   any    `doc:"Originating click id as number or string; unparsable ids are ignored" json:"clickId,omitempty"`
	VisitorID string `doc:"Client visitor id"                                   json:"visitorId,omitempty"`
}

// JSONConversionRequest is the request for the JSON conversion transport.
type JSONConversionRequest struct {
	RefCookie   string `cookie:"aff_ref"`
	ClickCookie string `cookie:"aff_click"`
	Body        ConversionBody
}

// ConversionQuery is the request for the query string and pixel transports.
type ConversionQuery struct {
	Ref         string `doc:"Attribution code"     query:"ref"`
	Value       string `doc:"Order value"          query:"value"`
	OrderID     string `doc:"Merchant order id"    query:"order_id"`
	Type        string `doc:"Event type"           query:"type"`
	ClickID     string `doc:"Originating click id" query:"click_id"`
	VisitorID   string `doc:"Client visitor id"    query:"visitor_id"`
	RefCookie   string `cookie:"aff_ref"`
	ClickCookie string `cookie:"aff_click"`
}

// ConversionOutput reports how a conversion signal was handled.
type ConversionOutput struct {
	Success           bool    `json:"success"`
	ConversionID      int64   `json:"conversionId,omitempty"`
	Duplicate         bool    `json:"duplicate"`
	ProbableDuplicate bool    `json:"probableDuplicate"`
	Kind              string  `json:"kind,omitempty"`
	Amount            float64 `json:"amount"`
	Error             string  `json:"error,omitempty"`
}

// ConversionResponse is the JSON response of the conversion transports.
type ConversionResponse struct {
	Body ConversionOutput
}

// PageviewRequest is the request for verifying a landing page view.
type PageviewRequest struct {
	Ref         string `doc:"Attribution code"     query:"ref"`
	ClickID     string `doc:"Originating click id" query:"click_id"`
	RefCookie   string `cookie:"aff_ref"`
	ClickCookie string `cookie:"aff_click"`
}

// PageviewResponse reports whether a page view is attributed.
type PageviewResponse struct {
	Body struct {
		Success       bool   `json:"success"`
		Code          string `json:"code,omitempty"`
		ClickID       int64  `json:"clickId,omitempty"`
		ClickVerified bool   `json:"clickVerified"`
		Error         string `json:"error,omitempty"`
	}
}

// HeartbeatBody is the JSON heartbeat sent by an installed tracker snippet.
type HeartbeatBody struct {
	_ struct{} `additionalProperties:"true"`

	Domain  string `doc:"Site domain; falls back to Origin then Referer" json:"domain,omitempty"`
	Code    string `doc:"Attribution code seen on the page"              json:"code,omitempty"`
	Version string `doc:"Snippet version"                                json:"version,omitempty"`
}

// HeartbeatRequest is the request for the JSON heartbeat.
type HeartbeatRequest struct {
	Body HeartbeatBody
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Body struct {
		Success bool   `json:"success"`
		Domain  string `json:"domain"`
	}
}

// HeartbeatPixelRequest is the request for the beacon heartbeat.
type HeartbeatPixelRequest struct {
	Domain  string `query:"domain"`
	Code    string `query:"code"`
	Version string `query:"v"`
}

// VerifyTrackerRequest is the request for a liveness check.
type VerifyTrackerRequest struct {
	Domain string `doc:"Domain to check" example:"shop.example" query:"domain" required:"true"`
}

// VerifyTrackerResponse reports whether the tracker snippet is live on a domain.
type VerifyTrackerResponse struct {
	Body struct {
		Domain    string     `json:"domain"`
		Installed bool       `json:"installed"`
		Method    string     `doc:"heartbeat, heuristic or none" json:"method"`
		LastSeen  *time.Time `json:"lastSeen,omitempty"`
	}
}

// CreateLinkRequest is the request body for minting a tracking link.
type CreateLinkRequest struct {
	Body struct {
		URL string `doc:"Destination URL" example:"https://shop.example/product" json:"url"`
	}
}

// LinkOutput describes a tracking link.
type LinkOutput struct {
	Code           string    `doc:"The attribution code"  example:"AB12CD34"                             json:"code"`
	TrackingURL    string    `doc:"The full tracking URL" example:"http://localhost:8888/AB12CD34"       json:"trackingUrl"`
	DestinationURL string    `doc:"The destination URL"   example:"https://shop.example/product"         json:"destinationUrl"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateLinkResponse is the response for a minted link.
type CreateLinkResponse struct {
	Status   int
	Location string `doc:"The tracking URL" header:"Location"`
	Body     LinkOutput
}

// ListLinksResponse lists the owner's links.
type ListLinksResponse struct {
	Body struct {
		Links []LinkOutput `json:"links"`
	}
}

// LinkCodeRequest addresses one of the owner's links.
type LinkCodeRequest struct {
	Code string `doc:"The attribution code" example:"AB12CD34" path:"code"`
}

// SummaryOutput holds aggregate counters.
type SummaryOutput struct {
	UniqueClicks   int64   `json:"uniqueClicks"`
	TotalClicks    int64   `json:"totalClicks"`
	Leads          int64   `json:"leads"`
	Sales          int64   `json:"sales"`
	SalesRevenue   float64 `json:"salesRevenue"`
	ConversionRate float64 `json:"conversionRate"`
}

// LinkStatsOutput holds the aggregate of one link.
type LinkStatsOutput struct {
	Code string `json:"code"`
	SummaryOutput
}

// LinkStatsResponse is the response for per-link stats.
type LinkStatsResponse struct {
	Body LinkStatsOutput
}

// OwnerStatsResponse is the response for the owner summary.
type OwnerStatsResponse struct {
	Body struct {
		SummaryOutput
		Links []LinkStatsOutput `json:"links"`
	}
}
