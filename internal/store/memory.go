// Package store provides the persistence backends for progress records:
// Postgres for production, an in-memory map for development and tests, and
// an optional Redis read-through cache layered over either.
package store

import (
	"context"
	"sync"

	"github.com/example/watch-progress/internal/progress"
)

// InMemoryStore is a development-only in-memory implementation.
type InMemoryStore struct {
	mu   sync.RWMutex
	recs map[memKey]progress.Record
}

type memKey struct {
	userID  string
	videoID string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{recs: make(map[memKey]progress.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, userID, videoID string) (progress.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[memKey{userID, videoID}]
	if !ok {
		return progress.Record{}, false, nil
	}
	// Copy the intervals so callers cannot alias the stored slice.
	rec.Intervals = append(progress.IntervalSet{}, rec.Intervals...)
	return rec, true, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, rec progress.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Intervals = append(progress.IntervalSet{}, rec.Intervals...)
	s.recs[memKey{rec.UserID, rec.VideoID}] = rec
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recs, memKey{userID, videoID})
	return nil
}
