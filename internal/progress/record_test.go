package progress

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestAddInterval_FirstReport(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)

	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("expected first interval to be accepted")
	}
	if len(r.Intervals) != 1 || r.Intervals[0] != (Interval{0, 10}) {
		t.Fatalf("expected [[0,10)], got %v", r.Intervals)
	}
	if !almostEqual(r.TotalWatched, 10) {
		t.Fatalf("expected total 10, got %v", r.TotalWatched)
	}
	if !almostEqual(r.LastPosition, 10) {
		t.Fatalf("expected last position 10, got %v", r.LastPosition)
	}
	if !r.LastWatchedAt.Equal(testNow) {
		t.Fatalf("expected last watched at %v, got %v", testNow, r.LastWatchedAt)
	}
}

func TestAddInterval_OverlapMergesAndCounts(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("seed interval rejected")
	}

	// [9,20): 10 of 11 seconds are new, well over half.
	if !r.AddInterval(9, 20, 20, testNow) {
		t.Fatal("expected overlapping extension to be accepted")
	}
	if len(r.Intervals) != 1 || r.Intervals[0] != (Interval{0, 20}) {
		t.Fatalf("expected merged [[0,20)], got %v", r.Intervals)
	}
	if !almostEqual(r.TotalWatched, 20) {
		t.Fatalf("expected total 20, got %v", r.TotalWatched)
	}
}

func TestAddInterval_SkipGuard(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("seed interval rejected")
	}
	before := r

	// |50-10| = 40 > 10: implausible jump.
	if r.AddInterval(50, 60, 60, testNow) {
		t.Fatal("expected far-seek interval to be rejected")
	}
	if r.TotalWatched != before.TotalWatched || len(r.Intervals) != len(before.Intervals) || r.LastPosition != before.LastPosition {
		t.Fatalf("expected record unchanged after rejection, got %+v", r)
	}
}

func TestAddInterval_NoveltyGuard(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("seed interval rejected")
	}

	// [0,11): only [10,11) is new, 1 < 5.5.
	if r.AddInterval(0, 11, 11, testNow) {
		t.Fatal("expected mostly-duplicate interval to be rejected")
	}
	if !almostEqual(r.TotalWatched, 10) {
		t.Fatalf("expected total unchanged at 10, got %v", r.TotalWatched)
	}
}

func TestAddInterval_ResubmitExactCoverage(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("seed interval rejected")
	}
	if r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("expected fully duplicate interval to be rejected")
	}
	if !almostEqual(r.TotalWatched, 10) {
		t.Fatalf("expected total unchanged at 10, got %v", r.TotalWatched)
	}
}

func TestAddInterval_Validation(t *testing.T) {
	cases := []struct {
		name       string
		start, end float64
	}{
		{"inverted", 10, 5},
		{"degenerate", 5, 5},
		{"negative start", -1, 5},
		{"past duration", 95, 101},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRecord("user-a", "video-1", 100)
			if r.AddInterval(tc.start, tc.end, tc.end, testNow) {
				t.Fatalf("expected [%v,%v) to be rejected", tc.start, tc.end)
			}
			if len(r.Intervals) != 0 || r.TotalWatched != 0 {
				t.Fatalf("expected record untouched, got %+v", r)
			}
		})
	}
}

func TestAddInterval_UnknownDurationSkipsBoundsCheck(t *testing.T) {
	r := NewRecord("user-a", "video-1", 0)
	if !r.AddInterval(0, 600, 600, testNow) {
		t.Fatal("expected interval to be accepted when duration is unknown")
	}
	if r.Completed {
		t.Fatal("completion must stay false while duration is unknown")
	}
}

func TestAddInterval_FirstReportAnywhere(t *testing.T) {
	// The seek guard only applies once something has been watched.
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(80, 90, 90, testNow) {
		t.Fatal("expected first interval far into the video to be accepted")
	}
}

func TestCompletion_ThresholdAndMonotonic(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)

	// Walk the video in contiguous chunks up to 90 seconds.
	for start := 0.0; start < 90; start += 10 {
		if !r.AddInterval(start, start+10, start+10, testNow) {
			t.Fatalf("chunk [%v,%v) rejected", start, start+10)
		}
	}
	if r.Completed {
		t.Fatalf("expected not completed at %v/100", r.TotalWatched)
	}

	// [90,96) pushes the total to 96 >= 95.
	if !r.AddInterval(90, 96, 96, testNow) {
		t.Fatal("expected [90,96) to be accepted")
	}
	if !r.Completed {
		t.Fatalf("expected completed at %v/100", r.TotalWatched)
	}

	// Further accepted intervals never unset completion.
	if !r.AddInterval(96, 100, 100, testNow) {
		t.Fatal("expected tail interval to be accepted")
	}
	if !r.Completed {
		t.Fatal("completion must be monotonic once reached")
	}
}

func TestWatched(t *testing.T) {
	r := NewRecord("user-a", "video-1", 100)
	if !r.AddInterval(0, 10, 10, testNow) {
		t.Fatal("seed interval rejected")
	}
	if !r.AddInterval(18, 30, 30, testNow) {
		t.Fatal("second interval rejected")
	}
	if len(r.Intervals) != 2 {
		t.Fatalf("expected two stored intervals, got %v", r.Intervals)
	}

	if !r.Watched(2, 8) {
		t.Fatal("expected [2,8] to be watched")
	}
	if r.Watched(5, 25) {
		t.Fatal("expected a span across two intervals to not be watched")
	}
}
