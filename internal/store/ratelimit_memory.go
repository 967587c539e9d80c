package store

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of recorded requests between full sweeps of idle keys.
const sweepEvery = 1024

type window struct {
	span  time.Duration
	stamp []time.Time
}

// trim drops timestamps at or before cutoff. Stamps are appended in order,
// so the survivors are a suffix.
func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.stamp) && !w.stamp[i].After(cutoff) {
		i++
	}

	w.stamp = append(w.stamp[:0], w.stamp[i:]...)
}

// RateLimitMemoryStore keeps sliding windows of request times for a single
// process. Keys that fall idle are removed by a periodic sweep.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	records int
	now     func() time.Time
}

func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Record adds a request under key and returns how many fall inside the window.
func (s *RateLimitMemoryStore) Record(_ context.Context, key string, span time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok {
		w = &window{span: span}
		s.windows[key] = w
	}

	w.span = span
	w.trim(now.Add(-span))
	w.stamp = append(w.stamp, now)

	s.records++
	if s.records%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	return int64(len(w.stamp)), nil
}

// Keys reports how many keys currently hold requests.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())

	return len(s.windows)
}

func (s *RateLimitMemoryStore) sweepLocked(now time.Time) {
	for key, w := range s.windows {
		w.trim(now.Add(-w.span))

		if len(w.stamp) == 0 {
			delete(s.windows, key)
		}
	}
}
