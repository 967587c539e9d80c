package attribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/analytics"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/metrics"
	"go.uber.org/zap"
)

// Transport names the client integration shape a conversion signal arrived through.
type Transport string

const (
	TransportJSON        Transport = "json"
	TransportQuery       Transport = "query"
	TransportPixel       Transport = "pixel"
	TransportCookiePixel Transport = "cookie_pixel"
)

// ConversionSignal is a conversion or lead report normalized from any transport.
type ConversionSignal struct {
	Transport Transport
	// Code is the explicitly supplied attribution code.
	Code Code
	// CookieCode is the attribution code recovered from the visitor's cookie.
	CookieCode Code
	RawValue   string
	VisitorID  VisitorID
	OrderID    string
	Kind       Kind
	ClickID    ClickID
}

// ConversionResult is the outcome of ingesting a conversion signal.
type ConversionResult struct {
	Link         *Link
	ConversionID ConversionID
	// Duplicate is set when the order id was already tracked; ConversionID is the original.
	Duplicate bool
	// ProbableDuplicate is set when a conversion without order id follows another one
	// for the same link inside the dedup window. The conversion is still stored.
	ProbableDuplicate bool
	Kind              Kind
	Amount            Amount
}

// IngesterConfig tunes conversion deduplication.
type IngesterConfig struct {
	// DedupWindow is the fallback window used when no order id is supplied.
	DedupWindow time.Duration
}

// DefaultIngesterConfig returns the production defaults.
func DefaultIngesterConfig() IngesterConfig {
	return IngesterConfig{DedupWindow: 5 * time.Second}
}

// Ingester is the shared conversion ingestion pipeline behind every transport.
type Ingester struct {
	links       LinkRepository
	clicks      ClickRepository
	conversions ConversionRepository
	cfg         IngesterConfig
	publish     messaging.Publish[analytics.ConversionRecordedEvent]
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewIngester creates a conversion ingester.
func NewIngester(
	links LinkRepository,
	clicks ClickRepository,
	conversions ConversionRepository,
	cfg IngesterConfig,
	publish messaging.Publish[analytics.ConversionRecordedEvent],
	m *metrics.Metrics,
	logger *zap.Logger,
) *Ingester {
	return &Ingester{
		links:       links,
		clicks:      clicks,
		conversions: conversions,
		cfg:         cfg,
		publish:     publish,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest attributes a conversion signal to its link and stores it. It returns
// ErrCodeRequired when no attribution code can be resolved and ErrNotFound for unknown
// codes. Replayed order ids are not errors: the original conversion is returned with
// Duplicate set.
func (i *Ingester) Ingest(ctx context.Context, sig *ConversionSignal) (*ConversionResult, error) {
	code := sig.Code
	if code == "" {
		code = sig.CookieCode
	}

	if code == "" {
		i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultNoop)

		return nil, ErrCodeRequired
	}

	link, err := i.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultNoop)
		} else {
			i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultFailed)
		}

		return nil, fmt.Errorf("lookup link %q: %w", code, err)
	}

	kind := sig.Kind
	if kind == "" {
		kind = KindSale
	}

	result := &ConversionResult{
		Link:   link,
		Kind:   kind,
		Amount: NormalizeAmount(sig.RawValue),
	}

	orderID := strings.TrimSpace(sig.OrderID)

	if orderID != "" {
		existing, err := i.conversions.FindConversionByOrderID(ctx, link.ID, orderID)

		switch {
		case err == nil:
			return i.duplicate(sig, result, existing), nil
		case errors.Is(err, ErrOrderIDUnsupported):
			i.logger.Warn("order id unsupported by store, deduplicating by window",
				zap.String("code", string(code)),
			)

			orderID = ""
		case !errors.Is(err, ErrNotFound):
			i.logger.Error("failed to look up conversion by order id",
				zap.String("code", string(code)),
				zap.String("orderId", orderID),
				zap.Error(err),
			)
		}
	}

	if orderID == "" {
		result.ProbableDuplicate = i.recentlyConverted(ctx, link)
	}

	conversion := &Conversion{
		LinkID:    link.ID,
		ClickID:   i.verifyClick(ctx, link, sig.ClickID),
		VisitorID: sig.VisitorID,
		Amount:    result.Amount,
		OrderID:   orderID,
		Kind:      kind,
		CreatedAt: i.now(),
	}

	if err = i.save(ctx, conversion); err != nil {
		if errors.Is(err, ErrDuplicate) && conversion.OrderID != "" {
			// lost the race against a concurrent writer of the same order
			existing, findErr := i.conversions.FindConversionByOrderID(ctx, link.ID, conversion.OrderID)
			if findErr == nil {
				return i.duplicate(sig, result, existing), nil
			}

			err = errors.Join(err, findErr)
		}

		i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultFailed)

		return nil, fmt.Errorf("save conversion: %w", err)
	}

	result.ConversionID = conversion.ID

	if result.ProbableDuplicate {
		i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultProbableDuplicate)
	} else {
		i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultCreated)
	}

	i.emit(sig, result, conversion.ClickID, conversion.OrderID)

	return result, nil
}

// save stores the conversion, dropping the order id when the store cannot hold it.
func (i *Ingester) save(ctx context.Context, conversion *Conversion) error {
	err := i.conversions.SaveConversion(ctx, conversion)
	if errors.Is(err, ErrOrderIDUnsupported) && conversion.OrderID != "" {
		i.logger.Warn("retrying conversion without order id",
			zap.Int64("linkId", int64(conversion.LinkID)),
			zap.String("orderId", conversion.OrderID),
		)

		conversion.OrderID = ""
		err = i.conversions.SaveConversion(ctx, conversion)
	}

	return err
}

func (i *Ingester) recentlyConverted(ctx context.Context, link *Link) bool {
	_, err := i.conversions.FindRecentConversion(ctx, link.ID, i.now().Add(-i.cfg.DedupWindow))
	if err == nil {
		return true
	}

	if !errors.Is(err, ErrNotFound) {
		i.logger.Error("failed to look up recent conversion",
			zap.String("code", string(link.Code)),
			zap.Error(err),
		)
	}

	return false
}

// verifyClick keeps a click id only when it refers to a click on the same link.
func (i *Ingester) verifyClick(ctx context.Context, link *Link, id ClickID) ClickID {
	if id == 0 {
		return 0
	}

	click, err := i.clicks.GetClick(ctx, id)
	if err != nil || click.LinkID != link.ID {
		i.logger.Debug("dropping unrelated click id",
			zap.String("code", string(link.Code)),
			zap.Int64("clickId", int64(id)),
		)

		return 0
	}

	return id
}

func (i *Ingester) duplicate(sig *ConversionSignal, result *ConversionResult, existing *Conversion) *ConversionResult {
	result.ConversionID = existing.ID
	result.Duplicate = true
	result.ProbableDuplicate = false
	result.Kind = existing.Kind
	result.Amount = existing.Amount

	i.metrics.ObserveConversion(string(sig.Transport), metrics.ResultDuplicate)
	i.emit(sig, result, existing.ClickID, existing.OrderID)

	return result
}

func (i *Ingester) emit(sig *ConversionSignal, result *ConversionResult, clickID ClickID, orderID string) {
	event := &analytics.ConversionRecordedEvent{
		EventID:           uuid.NewString(),
		Code:              string(result.Link.Code),
		LinkID:            int64(result.Link.ID),
		ConversionID:      int64(result.ConversionID),
		ClickID:           int64(clickID),
		Kind:              string(result.Kind),
		AmountCents:       int64(result.Amount),
		OrderID:           orderID,
		Transport:         string(sig.Transport),
		Duplicate:         result.Duplicate,
		ProbableDuplicate: result.ProbableDuplicate,
		RecordedAt:        i.now(),
	}

	if err := i.publish(event); err != nil {
		i.logger.Error("failed to publish conversion event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}
