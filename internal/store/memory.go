package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/openweather-collector/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot is available for a provider.
	ErrNotFound = errors.New("no snapshot for provider")
)

// history holds a time-ordered list of snapshots for one provider.
type history struct {
	snapshots []weather.Snapshot
}

// MemoryStore is a concurrency-safe in-memory snapshot store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: provider name
	data map[string]*history

	maxHistory int           // max number of snapshots per provider
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, that limit is not applied.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*history),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSnapshot inserts a snapshot in timestamp order and enforces retention.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot weather.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.data[snapshot.Provider]
	if !ok {
		h = &history{}
		s.data[snapshot.Provider] = h
	}

	i := len(h.snapshots)
	for i > 0 && h.snapshots[i-1].Timestamp.After(snapshot.Timestamp) {
		i--
	}
	h.snapshots = append(h.snapshots, weather.Snapshot{})
	copy(h.snapshots[i+1:], h.snapshots[i:])
	h.snapshots[i] = snapshot

	if s.maxHistory > 0 && len(h.snapshots) > s.maxHistory {
		over := len(h.snapshots) - s.maxHistory
		h.snapshots = append([]weather.Snapshot(nil), h.snapshots[over:]...)
	}

	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		keep := 0
		for keep < len(h.snapshots) && h.snapshots[keep].Timestamp.Before(cutoff) {
			keep++
		}
		h.snapshots = h.snapshots[keep:]
	}
	return nil
}

// Latest returns the most recent snapshot of a provider.
func (s *MemoryStore) Latest(_ context.Context, provider string) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[provider]
	if !ok || len(h.snapshots) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return h.snapshots[len(h.snapshots)-1], nil
}

// Range returns all snapshots of a provider between from and to (inclusive).
func (s *MemoryStore) Range(_ context.Context, provider string, from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[provider]
	if !ok || len(h.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Snapshot
	for _, snap := range h.snapshots {
		if !snap.Timestamp.Before(from) && !snap.Timestamp.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
