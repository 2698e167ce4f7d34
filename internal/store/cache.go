package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/progress"
)

// CachedStore layers a Redis read-through cache over another store. Cache
// misses and Redis failures fall through to the inner store; writes and
// deletes refresh or drop the cached copy. The record path stays correct
// with the cache disabled, so every Redis error is log-and-continue.
type CachedStore struct {
	inner  progress.Store
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedStore(inner progress.Store, url string, ttl time.Duration, log *zap.Logger) (*CachedStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedStore{inner: inner, client: redis.NewClient(opt), ttl: ttl, log: log}, nil
}

func cacheKey(userID, videoID string) string {
	return "progress:" + userID + ":" + videoID
}

func (s *CachedStore) Get(ctx context.Context, userID, videoID string) (progress.Record, bool, error) {
	key := cacheKey(userID, videoID)
	val, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var rec progress.Record
		if err := json.Unmarshal([]byte(val), &rec); err == nil {
			return rec, true, nil
		}
		s.log.Warn("cache: corrupt entry dropped", zap.String("key", key))
		_ = s.client.Del(ctx, key).Err()
	} else if err != redis.Nil {
		s.log.Warn("cache: get failed", zap.String("key", key), zap.Error(err))
	}

	rec, found, err := s.inner.Get(ctx, userID, videoID)
	if err != nil || !found {
		return rec, found, err
	}
	s.set(ctx, key, rec)
	return rec, true, nil
}

func (s *CachedStore) Upsert(ctx context.Context, rec progress.Record) error {
	if err := s.inner.Upsert(ctx, rec); err != nil {
		return err
	}
	s.set(ctx, cacheKey(rec.UserID, rec.VideoID), rec)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, userID, videoID string) error {
	if err := s.inner.Delete(ctx, userID, videoID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, cacheKey(userID, videoID)).Err(); err != nil {
		s.log.Warn("cache: del failed", zap.String("video_id", videoID), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) set(ctx context.Context, key string, rec progress.Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		s.log.Warn("cache: set failed", zap.String("key", key), zap.Error(err))
	}
}
