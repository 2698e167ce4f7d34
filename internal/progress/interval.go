// Package progress implements per-user, per-video watch tracking: a set of
// disjoint watched intervals, the rules for accepting newly reported
// intervals, and the derived totals and completion state.
package progress

import "sort"

const (
	// MergeTolerance is the largest gap, in seconds, across which two
	// intervals are still coalesced during a merge. One second absorbs
	// the boundary jitter of players that report on a coarse tick.
	MergeTolerance = 1.0

	// MaxSeekGap is how far, in seconds, a reported interval's start may
	// sit from the last known playback position before the report is
	// treated as an implausible skip.
	MaxSeekGap = 10.0

	// NoveltyRatio is the minimum share of a reported interval that must
	// be previously unwatched for the report to count.
	NoveltyRatio = 0.5

	// CompletionRatio is the watched share of the video at which the
	// record flips to completed.
	CompletionRatio = 0.95
)

// Interval is a half-open range [Start, End) of seconds watched in one
// sitting. Fractional seconds are allowed.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// IntervalSet is the watched coverage of one record. After every Merge it is
// sorted by start and pairwise disjoint, with no two members closer than
// MergeTolerance.
type IntervalSet []Interval

// Total returns the summed length of all members.
func (s IntervalSet) Total() float64 {
	var sum float64
	for _, iv := range s {
		sum += iv.Length()
	}
	return sum
}

// Merge sorts the set by start, coalesces members that overlap or sit within
// MergeTolerance of each other, replaces the set with the coalesced form and
// returns the total watched seconds. An empty set stays empty.
func (s *IntervalSet) Merge() float64 {
	if len(*s) == 0 {
		return 0
	}

	sorted := make(IntervalSet, len(*s))
	copy(sorted, *s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+MergeTolerance {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}

	*s = merged
	return merged.Total()
}

// Contains reports whether a single member fully contains [start, end].
// A query spanning two adjacent-but-distinct members is not contained,
// even though their union covers it.
func (s IntervalSet) Contains(start, end float64) bool {
	for _, iv := range s {
		if start >= iv.Start && end <= iv.End {
			return true
		}
	}
	return false
}

// Uncovered returns the measure of [start, end) not covered by the set:
// interval subtraction against the union of the members. The set is assumed
// merged (sorted, disjoint), which holds for every maintained record.
func (s IntervalSet) Uncovered(start, end float64) float64 {
	if end <= start {
		return 0
	}
	fresh := end - start
	for _, iv := range s {
		if iv.End <= start {
			continue
		}
		if iv.Start >= end {
			break
		}
		lo, hi := iv.Start, iv.End
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if hi > lo {
			fresh -= hi - lo
		}
	}
	if fresh < 0 {
		return 0
	}
	return fresh
}
