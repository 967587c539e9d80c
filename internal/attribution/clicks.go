package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/metrics"
	"go.uber.org/zap"
)

// ClickRecorderConfig tunes click deduplication.
type ClickRecorderConfig struct {
	// DedupWindow collapses repeated clicks by the same visitor on the same link.
	// It is kept short so only double-fires and refreshes are absorbed.
	DedupWindow time.Duration
	// WriteTimeout bounds the storage work done on the redirect path.
	WriteTimeout time.Duration
}

// DefaultClickRecorderConfig returns the production defaults.
func DefaultClickRecorderConfig() ClickRecorderConfig {
	return ClickRecorderConfig{
		DedupWindow:  time.Second,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// RecordedClick is the outcome of a redirect click.
type RecordedClick struct {
	Link *Link
	// ClickID is zero when the click could not be stored.
	ClickID   ClickID
	Duplicate bool
}

// ClickRecorder records redirect clicks without ever failing the redirect on
// click storage errors.
type ClickRecorder struct {
	links   LinkRepository
	clicks  ClickRepository
	cfg     ClickRecorderConfig
	publish messaging.Publish[analytics.ClickRecordedEvent]
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewClickRecorder creates a click recorder.
func NewClickRecorder(
	links LinkRepository,
	clicks ClickRepository,
	cfg ClickRecorderConfig,
	publish messaging.Publish[analytics.ClickRecordedEvent],
	m *metrics.Metrics,
	logger *zap.Logger,
) *ClickRecorder {
	return &ClickRecorder{
		links:   links,
		clicks:  clicks,
		cfg:     cfg,
		publish: publish,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Record resolves the link for code and records a click for visitor. It returns
// ErrNotFound for unknown codes. Click storage failures are logged and reported as a
// zero ClickID.
func (r *ClickRecorder) Record(ctx context.Context, code Code, visitor VisitorID, ip string) (*RecordedClick, error) {
	link, err := r.links.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup link %q: %w", code, err)
	}

	result := &RecordedClick{Link: link}

	clickID, duplicate, err := r.store(ctx, link, visitor, ip)
	if err != nil {
		r.logger.Error("failed to record click",
			zap.String("code", string(code)),
			zap.Error(err),
		)
		r.metrics.ObserveClick(metrics.ResultFailed)

		return result, nil
	}

	result.ClickID = clickID
	result.Duplicate = duplicate

	if duplicate {
		r.metrics.ObserveClick(metrics.ResultDuplicate)
	} else {
		r.metrics.ObserveClick(metrics.ResultCreated)
	}

	event := &analytics.ClickRecordedEvent{
		EventID:    uuid.NewString(),
		Code:       string(code),
		LinkID:     int64(link.ID),
		ClickID:    int64(clickID),
		VisitorID:  string(visitor),
		Duplicate:  duplicate,
		ClientIP:   ip,
		RecordedAt: r.now(),
	}

	if err = r.publish(event); err != nil {
		r.logger.Error("failed to publish click event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return result, nil
}

func (r *ClickRecorder) store(ctx context.Context, link *Link, visitor VisitorID, ip string) (ClickID, bool, error) {
	if r.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()
	}

	now := r.now()

	existing, err := r.clicks.FindRecentClick(ctx, link.ID, visitor, now.Add(-r.cfg.DedupWindow))
	if err == nil {
		return existing.ID, true, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}

	click := &Click{
		LinkID:    link.ID,
		VisitorID: visitor,
		IP:        ip,
		CreatedAt: now,
	}

	if err = r.clicks.SaveClick(ctx, click); err != nil {
		return 0, false, err
	}

	return click.ID, false, nil
}
