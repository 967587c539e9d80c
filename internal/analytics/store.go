package analytics

import "context"

// Store defines the interface for persisting attribution audit events.
type Store interface {
	SaveClickRecorded(ctx context.Context, event *ClickRecordedEvent) error
	SaveConversionRecorded(ctx context.Context, event *ConversionRecordedEvent) error
}
