package store

import (
	"context"
	"time"

	"github.com/xzrsniper/affiliate-tracking-sub000/internal/tracker"
)

type trackerRow struct {
	lastSeenAt time.Time
	code       string
	version    string
}

func (m *MemoryStore) UpsertVerification(_ context.Context, v *tracker.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifications[v.Domain] = trackerRow{
		lastSeenAt: v.LastSeenAt,
		code:       v.Code,
		version:    v.Version,
	}

	return nil
}

func (m *MemoryStore) LatestVerification(_ context.Context, domains ...string) (*tracker.Verification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *tracker.Verification

	for _, domain := range domains {
		row, ok := m.verifications[domain]
		if !ok {
			continue
		}

		if latest == nil || row.lastSeenAt.After(latest.LastSeenAt) {
			latest = &tracker.Verification{
				Domain:     domain,
				LastSeenAt: row.lastSeenAt,
				Code:       row.code,
				Version:    row.version,
			}
		}
	}

	if latest == nil {
		return nil, tracker.ErrNotFound
	}

	return latest, nil
}

func (m *MemoryStore) PruneVerifications(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64

	for domain, row := range m.verifications {
		if row.lastSeenAt.Before(before) {
			delete(m.verifications, domain)
			removed++
		}
	}

	return removed, nil
}
