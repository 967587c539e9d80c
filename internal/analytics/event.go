package analytics

import "time"

const (
	TopicClickRecorded      = "attribution.click.recorded"
	TopicConversionRecorded = "attribution.conversion.recorded"
)

// ClickRecordedEvent is emitted after a redirect click has been recorded or deduplicated.
type ClickRecordedEvent struct {
	EventID    string    `json:"eventId"`
	Code       string    `json:"code"`
	LinkID     int64     `json:"linkId"`
	ClickID    int64     `json:"clickId,omitempty"`
	VisitorID  string    `json:"visitorId"`
	Duplicate  bool      `json:"duplicate"`
	ClientIP   string    `json:"clientIp"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ConversionRecordedEvent is emitted after a conversion has been stored or matched.
type ConversionRecordedEvent struct {
	EventID           string    `json:"eventId"`
	Code              string    `json:"code"`
	LinkID            int64     `json:"linkId"`
	ConversionID      int64     `json:"conversionId"`
	ClickID           int64     `json:"clickId,omitempty"`
	Kind              string    `json:"kind"`
	AmountCents       int64     `json:"amountCents"`
	OrderID           string    `json:"orderId,omitempty"`
	Transport         string    `json:"transport"`
	Duplicate         bool      `json:"duplicate"`
	ProbableDuplicate bool      `json:"probableDuplicate"`
	RecordedAt        time.Time `json:"recordedAt"`
}
