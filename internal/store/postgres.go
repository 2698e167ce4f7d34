package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/watch-progress/internal/progress"
)

// PostgresStore is the production Postgres-backed implementation.
//
// Expected schema:
//
//	CREATE TABLE user_video_progress (
//	    user_id         text NOT NULL,
//	    video_id        text NOT NULL,
//	    intervals       jsonb NOT NULL DEFAULT '[]',
//	    last_position   double precision NOT NULL DEFAULT 0,
//	    total_watched   double precision NOT NULL DEFAULT 0,
//	    video_duration  double precision NOT NULL DEFAULT 0,
//	    last_watched_at timestamptz NOT NULL DEFAULT 'epoch',
//	    completed       boolean NOT NULL DEFAULT false,
//	    updated_at      timestamptz NOT NULL DEFAULT now(),
//	    PRIMARY KEY (user_id, video_id)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping reports backend health; used by the readiness endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, userID, videoID string) (progress.Record, bool, error) {
	const q = `SELECT intervals, last_position, total_watched, video_duration, last_watched_at, completed
	           FROM user_video_progress WHERE user_id = $1 AND video_id = $2`

	rec := progress.Record{UserID: userID, VideoID: videoID}
	var raw []byte
	err := s.pool.QueryRow(ctx, q, userID, videoID).
		Scan(&raw, &rec.LastPosition, &rec.TotalWatched, &rec.VideoDuration, &rec.LastWatchedAt, &rec.Completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return progress.Record{}, false, nil
		}
		return progress.Record{}, false, fmt.Errorf("select progress: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Intervals); err != nil {
		return progress.Record{}, false, fmt.Errorf("decode intervals: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec progress.Record) error {
	const q = `
INSERT INTO user_video_progress (user_id, video_id, intervals, last_position, total_watched, video_duration, last_watched_at, completed, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (user_id, video_id)
DO UPDATE SET
  intervals       = EXCLUDED.intervals,
  last_position   = EXCLUDED.last_position,
  total_watched   = EXCLUDED.total_watched,
  video_duration  = EXCLUDED.video_duration,
  last_watched_at = EXCLUDED.last_watched_at,
  completed       = EXCLUDED.completed,
  updated_at      = now()`

	raw, err := json.Marshal(rec.Intervals)
	if err != nil {
		return fmt.Errorf("encode intervals: %w", err)
	}
	_, err = s.pool.Exec(ctx, q,
		rec.UserID, rec.VideoID, raw, rec.LastPosition, rec.TotalWatched,
		rec.VideoDuration, rec.LastWatchedAt, rec.Completed,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, videoID string) error {
	const q = `DELETE FROM user_video_progress WHERE user_id = $1 AND video_id = $2`
	if _, err := s.pool.Exec(ctx, q, userID, videoID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
