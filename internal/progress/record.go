package progress

import (
	"math"
	"time"
)

// Record is the watch progress of one (user, video) pair. At most one record
// exists per pair; the store enforces the compound key.
type Record struct {
	UserID        string      `json:"user_id"`
	VideoID       string      `json:"video_id"`
	Intervals     IntervalSet `json:"intervals"`
	LastPosition  float64     `json:"last_position"`
	TotalWatched  float64     `json:"total_watched"`
	VideoDuration float64     `json:"video_duration"`
	LastWatchedAt time.Time   `json:"last_watched_at"`
	Completed     bool        `json:"is_completed"`
}

// NewRecord returns an empty record for the pair. Duration may be zero and
// learned later from the first reported interval.
func NewRecord(userID, videoID string, duration float64) Record {
	return Record{
		UserID:        userID,
		VideoID:       videoID,
		Intervals:     IntervalSet{},
		VideoDuration: duration,
	}
}

// Watched reports whether a single stored interval fully contains [start, end].
func (r *Record) Watched(start, end float64) bool {
	return r.Intervals.Contains(start, end)
}

// AddInterval validates a reported interval against the record and, when
// accepted, folds it into the coverage and refreshes the derived fields.
// A false return means the report was rejected and the record is unchanged.
//
// Checks run in order and the first failure wins:
// degenerate or inverted range; out of bounds (end past a known duration);
// start implausibly far from the last known position (seek guard, skipped
// for a fresh record); less than half of the range previously unwatched
// (novelty guard, so re-reporting known coverage cannot pad totals).
func (r *Record) AddInterval(start, end, position float64, now time.Time) bool {
	if end <= start || start < 0 {
		return false
	}
	if r.VideoDuration > 0 && end > r.VideoDuration {
		return false
	}
	if r.TotalWatched > 0 && math.Abs(start-r.LastPosition) > MaxSeekGap {
		return false
	}
	if r.Intervals.Uncovered(start, end) < NoveltyRatio*(end-start) {
		return false
	}

	r.LastPosition = position
	r.LastWatchedAt = now
	r.Intervals = append(r.Intervals, Interval{Start: start, End: end})
	r.recompute()
	return true
}

// recompute re-merges the coverage and refreshes TotalWatched and Completed.
// Completion is only meaningful once the duration is known.
func (r *Record) recompute() {
	r.TotalWatched = r.Intervals.Merge()
	if r.VideoDuration > 0 {
		r.Completed = r.TotalWatched/r.VideoDuration >= CompletionRatio
	}
}
