package record

import (
	"testing"

	"github.com/bdeggleston/rowstore/testing_helpers"
)

func TestColumnStats(t *testing.T) {
	r := NewRecord(newTestMetadata())
	r.AddNamed(CellName("b"), []byte("x"), 5)
	r.AddNamed(CellName("d"), []byte("y"), 9)
	r.AddTombstone(CellName("a"), 50, 3)
	r.AddExpiring(CellName("c"), []byte("z"), 7, 10, 100)

	stats := r.GetColumnStats()
	testing_helpers.AssertEqual(t, "count", 4, stats.Count)
	testing_helpers.AssertEqual(t, "min timestamp", int64(3), stats.MinTimestamp)
	testing_helpers.AssertEqual(t, "max timestamp", int64(9), stats.MaxTimestamp)
	testing_helpers.AssertEqual(t, "max local deletion", NoDeletionTime, stats.MaxLocalDeletionTime)
	testing_helpers.AssertEqual(t, "min name", "a", string(stats.MinName))
	testing_helpers.AssertEqual(t, "max name", "d", string(stats.MaxName))

	// the tombstone and the expiring cell land in the histogram,
	// live cells don't
	testing_helpers.AssertEqual(t, "histogram count", uint64(2), stats.TombstoneHistogram.Count())
}

func TestColumnStatsIncludesDeletionInfo(t *testing.T) {
	r := NewRecord(newTestMetadata())
	r.AddNamed(CellName("a"), []byte("x"), 5)
	r.DeleteAt(DeletionTime{MarkedForDeleteAt: 9, LocalDeletionTime: 90})

	stats := r.GetColumnStats()
	testing_helpers.AssertEqual(t, "min timestamp", int64(5), stats.MinTimestamp)
	testing_helpers.AssertEqual(t, "max timestamp", int64(9), stats.MaxTimestamp)
}

// bins wholly below b count in full, the straddling bin credits
// half its mass plus the interpolated trapezoid
func TestStreamingHistogramSum(t *testing.T) {
	h := NewStreamingHistogram(4)
	for _, v := range []int64{10, 20, 20, 30} {
		h.Update(v)
	}
	testing_helpers.AssertEqual(t, "bins", 3, h.BinCount())
	testing_helpers.AssertEqual(t, "total", uint64(4), h.Count())
	testing_helpers.AssertEqual(t, "sum below", float64(0), h.Sum(5))
	testing_helpers.AssertEqual(t, "sum first point", float64(0.5), h.Sum(10))
	testing_helpers.AssertEqual(t, "sum mid", float64(2), h.Sum(20))
	// halfway between the 20 and 30 bins: 1 + 2/2 + (2+1.5)/2*0.5
	testing_helpers.AssertEqual(t, "sum interpolated", float64(2.875), h.Sum(25))
	testing_helpers.AssertEqual(t, "sum all", float64(4), h.Sum(100))
}

// once the bin cap is hit the closest bins merge, the total count
// is preserved and the estimate stays monotone
func TestStreamingHistogramMergesBeyondCap(t *testing.T) {
	h := NewStreamingHistogram(3)
	for v := int64(0); v < 100; v += 10 {
		h.Update(v)
	}
	testing_helpers.AssertEqual(t, "bins capped", 3, h.BinCount())
	testing_helpers.AssertEqual(t, "total preserved", uint64(10), h.Count())

	prev := float64(-1)
	for b := int64(-10); b <= 110; b += 5 {
		s := h.Sum(b)
		if s < prev {
			t.Fatalf("sum not monotone at %v: %v < %v", b, s, prev)
		}
		prev = s
	}
	testing_helpers.AssertEqual(t, "sum everything", float64(10), h.Sum(1000))
}
