package store

import (
	"context"

	"github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics"
	"go.uber.org/zap"
)

// Log is an analytics.Store that writes the attribution audit trail to a logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a new logging analytics store.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("audit")}
}

func (l *Log) SaveClickRecorded(_ context.Context, event *analytics.ClickRecordedEvent) error {
	l.logger.Info("click recorded",
		zap.String("eventId", event.EventID),
		zap.String("code", event.Code),
		zap.Int64("linkId", event.LinkID),
		zap.Int64("clickId", event.ClickID),
		zap.String("visitorId", event.VisitorID),
		zap.Bool("duplicate", event.Duplicate),
		zap.Time("recordedAt", event.RecordedAt),
	)

	return nil
}

func (l *Log) SaveConversionRecorded(_ context.Context, event *analytics.ConversionRecordedEvent) error {
	l.logger.Info("conversion recorded",
		zap.String("eventId", event.EventID),
		zap.String("code", event.Code),
		zap.Int64("conversionId", event.ConversionID),
		zap.String("kind", event.Kind),
		zap.Int64("amountCents", event.AmountCents),
		zap.String("orderId", event.OrderID),
		zap.String("transport", event.Transport),
		zap.Bool("duplicate", event.Duplicate),
		zap.Bool("probableDuplicate", event.ProbableDuplicate),
		zap.Time("recordedAt", event.RecordedAt),
	)

	return nil
}

// Compile-time check.
var _ analytics.Store = (*Log)(nil)
