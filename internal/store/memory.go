package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
)

// MemoryStore is an in-memory implementation of the attribution and tracker repositories.
type MemoryStore struct {
	mu            sync.RWMutex
	links         map[attribution.Code]*attribution.Link
	clicks        map[attribution.ClickID]*attribution.Click
	conversions   map[attribution.ConversionID]*attribution.Conversion
	verifications map[string]trackerRow
	linkSeq       int64
	clickSeq      int64
	conversionSeq int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:         make(map[attribution.Code]*attribution.Link),
		clicks:        make(map[attribution.ClickID]*attribution.Click),
		conversions:   make(map[attribution.ConversionID]*attribution.Conversion),
		verifications: make(map[string]trackerRow),
	}
}

func (m *MemoryStore) Save(_ context.Context, link *attribution.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.Code]; ok {
		return attribution.ErrDuplicate
	}

	m.linkSeq++
	link.ID = attribution.LinkID(m.linkSeq)

	stored := *link
	m.links[link.Code] = &stored

	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, code attribution.Code) (*attribution.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[code]
	if !ok {
		return nil, attribution.ErrNotFound
	}

	out := *link

	return &out, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, owner attribution.OwnerID) ([]attribution.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]attribution.Link, 0)

	for _, link := range m.links {
		if link.OwnerID == owner {
			out = append(out, *link)
		}
	}

	// newest first
	slices.SortFunc(out, func(a, b attribution.Link) int {
		return cmp.Compare(b.ID, a.ID)
	})

	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, code attribution.Code, owner attribution.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok || link.OwnerID != owner {
		return attribution.ErrNotFound
	}

	delete(m.links, code)

	for id, click := range m.clicks {
		if click.LinkID == link.ID {
			delete(m.clicks, id)
		}
	}

	for id, conversion := range m.conversions {
		if conversion.LinkID == link.ID {
			delete(m.conversions, id)
		}
	}

	return nil
}

func (m *MemoryStore) SaveClick(_ context.Context, click *attribution.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clickSeq++
	click.ID = attribution.ClickID(m.clickSeq)

	stored := *click
	m.clicks[click.ID] = &stored

	return nil
}

func (m *MemoryStore) GetClick(_ context.Context, id attribution.ClickID) (*attribution.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	click, ok := m.clicks[id]
	if !ok {
		return nil, attribution.ErrNotFound
	}

	out := *click

	return &out, nil
}

func (m *MemoryStore) FindRecentClick(
	_ context.Context,
	linkID attribution.LinkID,
	visitor attribution.VisitorID,
	since time.Time,
) (*attribution.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *attribution.Click

	for _, click := range m.clicks {
		if click.LinkID != linkID || click.VisitorID != visitor || click.CreatedAt.Before(since) {
			continue
		}

		if newest == nil || click.CreatedAt.After(newest.CreatedAt) {
			newest = click
		}
	}

	if newest == nil {
		return nil, attribution.ErrNotFound
	}

	out := *newest

	return &out, nil
}

func (m *MemoryStore) CountClicks(_ context.Context, linkID attribution.LinkID) (attribution.ClickCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var counts attribution.ClickCounts

	visitors := make(map[attribution.VisitorID]struct{})

	for _, click := range m.clicks {
		if click.LinkID != linkID {
			continue
		}

		counts.Total++
		visitors[click.VisitorID] = struct{}{}
	}

	counts.Unique = int64(len(visitors))

	return counts, nil
}

func (m *MemoryStore) SaveConversion(_ context.Context, conversion *attribution.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conversion.OrderID != "" {
		if _, ok := m.findByOrderID(conversion.LinkID, conversion.OrderID); ok {
			return attribution.ErrDuplicate
		}
	}

	m.conversionSeq++
	conversion.ID = attribution.ConversionID(m.conversionSeq)

	stored := *conversion
	m.conversions[conversion.ID] = &stored

	return nil
}

func (m *MemoryStore) FindConversionByOrderID(
	_ context.Context,
	linkID attribution.LinkID,
	orderID string,
) (*attribution.Conversion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conversion, ok := m.findByOrderID(linkID, orderID)
	if !ok {
		return nil, attribution.ErrNotFound
	}

	out := *conversion

	return &out, nil
}

func (m *MemoryStore) findByOrderID(linkID attribution.LinkID, orderID string) (*attribution.Conversion, bool) {
	for _, conversion := range m.conversions {
		if conversion.LinkID == linkID && conversion.OrderID == orderID {
			return conversion, true
		}
	}

	return nil, false
}

func (m *MemoryStore) FindRecentConversion(
	_ context.Context,
	linkID attribution.LinkID,
	since time.Time,
) (*attribution.Conversion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *attribution.Conversion

	for _, conversion := range m.conversions {
		if conversion.LinkID != linkID || conversion.CreatedAt.Before(since) {
			continue
		}

		if newest == nil || conversion.CreatedAt.After(newest.CreatedAt) {
			newest = conversion
		}
	}

	if newest == nil {
		return nil, attribution.ErrNotFound
	}

	out := *newest

	return &out, nil
}

func (m *MemoryStore) SumConversions(
	_ context.Context,
	linkID attribution.LinkID,
) (attribution.ConversionTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals attribution.ConversionTotals

	for _, conversion := range m.conversions {
		if conversion.LinkID != linkID {
			continue
		}

		switch conversion.Kind {
		case attribution.KindLead:
			totals.Leads++
		default:
			totals.Sales++
			totals.SalesRevenue += conversion.Amount
		}
	}

	return totals, nil
}
