package attribution_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/store"
)

// recorder captures published events.
type recorder[T any] struct {
	mu     sync.Mutex
	events []*T
	err    error
}

func (r *recorder[T]) publish() messaging.Publish[T] {
	return func(event *T) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.events = append(r.events, event)

		return r.err
	}
}

func seedLink(t *testing.T, s *store.MemoryStore, code, owner string) *attribution.Link {
	t.Helper()

	link := &attribution.Link{
		Code:           attribution.Code(code),
		DestinationURL: "https://shop.example/page",
		OwnerID:        attribution.OwnerID(owner),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.Save(context.Background(), link))

	return link
}
