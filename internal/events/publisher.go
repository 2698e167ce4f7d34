// Package events publishes accepted progress updates to NATS JetStream so
// downstream consumers (recommendations, analytics) can react without
// touching the record path. Publishing is fire-and-forget: failures are
// logged and dropped, never retried, and never block an update.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/progress"
)

const (
	SubjectProgressUpdated = "progress.video.updated"
	streamName             = "PROGRESS"
)

// Event is the envelope published on every accepted interval.
type Event struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	VideoID      string    `json:"video_id"`
	OccurredAt   time.Time `json:"occurred_at"`
	LastPosition float64   `json:"last_position"`
	TotalWatched float64   `json:"total_watched"`
	Completed    bool      `json:"completed"`
}

// Publisher publishes progress events to NATS JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New wraps an existing NATS connection and ensures the PROGRESS stream
// exists. Pass nc=nil to get a no-op stub.
func New(nc *nats.Conn, log *zap.Logger) (*Publisher, error) {
	if nc == nil {
		return &Publisher{log: log}, nil
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"progress.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", zap.Error(err))
	}
	return &Publisher{js: js, log: log}, nil
}

// ProgressUpdated implements progress.Notifier. Safe on a nil receiver.
func (p *Publisher) ProgressUpdated(userID, videoID string, rec progress.Record) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:      uuid.NewString(),
		UserID:       userID,
		VideoID:      videoID,
		OccurredAt:   time.Now().UTC(),
		LastPosition: rec.LastPosition,
		TotalWatched: rec.TotalWatched,
		Completed:    rec.Completed,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("video_id", videoID), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(SubjectProgressUpdated, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", SubjectProgressUpdated), zap.Error(err))
	}
}
