// Package ratewindow maintains per-key sliding windows of recent event
// timestamps for advisory rate accounting.
package ratewindow

import (
	"context"
	"sync"
	"time"
)

// Store records an event for a key and reports how many events the key has
// inside the trailing window, the new event included. The count is advisory:
// exact ordering between racing events for the same key within the same
// instant is not guaranteed.
type Store interface {
	Record(ctx context.Context, key string, now time.Time) (int, error)
	Reset(ctx context.Context, key string) error
}

// MemoryStore keeps windows in process memory. Entries older than the window
// are pruned on every access for that key; keys with no recent events are
// evicted by a background sweep.
type MemoryStore struct {
	mu     sync.Mutex
	window time.Duration
	events map[string][]time.Time
}

// NewMemoryStore creates an in-process store for the given window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	s := &MemoryStore{
		window: window,
		events: make(map[string][]time.Time),
	}
	// Periodically evict stale keys to prevent memory growth.
	go s.sweep()
	return s
}

// Record prunes, appends and counts in one critical section.
func (s *MemoryStore) Record(_ context.Context, key string, now time.Time) (int, error) {
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[key][:0]
	for _, ts := range s.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.events[key] = kept
	return len(kept), nil
}

// Reset drops all recorded events for a key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.events, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-s.window)
		s.mu.Lock()
		for key, timestamps := range s.events {
			stale := true
			for _, ts := range timestamps {
				if ts.After(cutoff) {
					stale = false
					break
				}
			}
			if stale {
				delete(s.events, key)
			}
		}
		s.mu.Unlock()
	}
}
