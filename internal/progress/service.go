package progress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store is the persistence contract the service needs: a keyed store with a
// uniqueness constraint on (user_id, video_id).
type Store interface {
	// Get returns the record for the pair; found is false when absent.
	Get(ctx context.Context, userID, videoID string) (rec Record, found bool, err error)
	// Upsert inserts or overwrites the record for its pair.
	Upsert(ctx context.Context, rec Record) error
	// Delete removes the record for the pair. Absence is not an error.
	Delete(ctx context.Context, userID, videoID string) error
}

// Notifier receives accepted progress updates. Delivery is fire-and-forget;
// implementations must never block or fail the apply path.
type Notifier interface {
	ProgressUpdated(userID, videoID string, rec Record)
}

// Service owns the lifecycle of progress records: fetch-or-create, applying
// reported intervals, and reset. Requests are independent units of work with
// no cross-request locking; concurrent updates to one pair are last-write-wins.
type Service struct {
	store  Store
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store Store, notify Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, notify: notify, log: log, now: time.Now}
}

// Fetch returns the record for the pair, creating and persisting an empty one
// on first access. Repeated calls are idempotent.
func (s *Service) Fetch(ctx context.Context, userID, videoID string) (Record, error) {
	rec, found, err := s.store.Get(ctx, userID, videoID)
	if err != nil {
		return Record{}, fmt.Errorf("get progress: %w", err)
	}
	if found {
		return rec, nil
	}

	rec = NewRecord(userID, videoID, 0)
	if err := s.store.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create progress: %w", err)
	}
	return rec, nil
}

// Apply runs a reported interval through the record. The record is created on
// demand, seeding the video duration from the interval end when unknown. The
// record is persisted whether or not the interval was accepted; rejection is
// a normal outcome, reported through the bool, never an error.
func (s *Service) Apply(ctx context.Context, userID, videoID string, iv Interval, position float64) (Record, bool, error) {
	rec, found, err := s.store.Get(ctx, userID, videoID)
	if err != nil {
		return Record{}, false, fmt.Errorf("get progress: %w", err)
	}
	if !found {
		rec = NewRecord(userID, videoID, iv.End)
	}

	accepted := rec.AddInterval(iv.Start, iv.End, position, s.now().UTC())

	if err := s.store.Upsert(ctx, rec); err != nil {
		return Record{}, false, fmt.Errorf("save progress: %w", err)
	}

	if accepted {
		s.log.Debug("interval accepted",
			zap.String("user_id", userID),
			zap.String("video_id", videoID),
			zap.Float64("total_watched", rec.TotalWatched),
			zap.Bool("completed", rec.Completed),
		)
		if s.notify != nil {
			s.notify.ProgressUpdated(userID, videoID, rec)
		}
	}
	return rec, accepted, nil
}

// Watched reports whether a single stored interval of the pair's record fully
// contains [start, end]. A missing record is created, matching Fetch.
func (s *Service) Watched(ctx context.Context, userID, videoID string, start, end float64) (bool, error) {
	rec, err := s.Fetch(ctx, userID, videoID)
	if err != nil {
		return false, err
	}
	return rec.Watched(start, end), nil
}

// Reset deletes the pair's record wholesale. Absence is not an error.
func (s *Service) Reset(ctx context.Context, userID, videoID string) error {
	if err := s.store.Delete(ctx, userID, videoID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
