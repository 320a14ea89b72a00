package record

import (
	"math"
)

// bin count used for tombstone deletion time histograms
const tombstoneHistogramBinSize = 100

// approximate histogram over a stream of values, held to a fixed
// number of bins. When a new value would exceed the cap, the two
// closest bins are merged into their weighted midpoint. Gives the
// storage layer a cheap estimate of how many tombstones will be
// purgeable at a given gc horizon
type StreamingHistogram struct {
	maxBins int
	points  []int64 // sorted
	counts  []uint64
}

func NewStreamingHistogram(maxBins int) *StreamingHistogram {
	return &StreamingHistogram{maxBins: maxBins}
}

func (h *StreamingHistogram) Update(p int64) {
	lo, hi := 0, len(h.points)
	for lo < hi {
		mid := (lo + hi) / 2
		if h.points[mid] < p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(h.points) && h.points[lo] == p {
		h.counts[lo]++
		return
	}
	h.points = append(h.points, 0)
	copy(h.points[lo+1:], h.points[lo:])
	h.points[lo] = p
	h.counts = append(h.counts, 0)
	copy(h.counts[lo+1:], h.counts[lo:])
	h.counts[lo] = 1

	if len(h.points) > h.maxBins {
		h.mergeClosest()
	}
}

func (h *StreamingHistogram) mergeClosest() {
	idx := 0
	gap := int64(math.MaxInt64)
	for i := 0; i < len(h.points)-1; i++ {
		if d := h.points[i+1] - h.points[i]; d < gap {
			gap = d
			idx = i
		}
	}
	c1, c2 := h.counts[idx], h.counts[idx+1]
	merged := (h.points[idx]*int64(c1) + h.points[idx+1]*int64(c2)) / int64(c1+c2)
	h.points[idx] = merged
	h.counts[idx] = c1 + c2
	h.points = append(h.points[:idx+1], h.points[idx+2:]...)
	h.counts = append(h.counts[:idx+1], h.counts[idx+2:]...)
}

// estimates the number of recorded values that are <= b. Each bin's
// mass is treated as spread around its point: bins wholly below b
// count in full, the bin straddling b contributes half its count
// plus the trapezoid between its point and b, interpolated against
// the next bin
func (h *StreamingHistogram) Sum(b int64) float64 {
	if len(h.points) == 0 || b < h.points[0] {
		return 0
	}
	if b >= h.points[len(h.points)-1] {
		return float64(h.Count())
	}
	i := 0
	for h.points[i+1] <= b {
		i++
	}
	sum := float64(0)
	for j := 0; j < i; j++ {
		sum += float64(h.counts[j])
	}
	ci, cnext := float64(h.counts[i]), float64(h.counts[i+1])
	weight := float64(b-h.points[i]) / float64(h.points[i+1]-h.points[i])
	mb := ci + (cnext-ci)*weight
	sum += ci/2 + (ci+mb)*weight/2
	return sum
}

func (h *StreamingHistogram) BinCount() int { return len(h.points) }

func (h *StreamingHistogram) Count() uint64 {
	var total uint64
	for _, c := range h.counts {
		total += c
	}
	return total
}

// summary of a record's contents used by the storage layer to
// prioritize compaction
type ColumnStats struct {
	Count                int
	MinTimestamp         int64
	MaxTimestamp         int64
	MaxLocalDeletionTime int32
	TombstoneHistogram   *StreamingHistogram
	MinName              CellName
	MaxName              CellName
}

// computes the stats in one streaming pass over the cells
func (r *Record) GetColumnStats() ColumnStats {
	di := r.DeletionInfo()
	cs := ColumnStats{
		MinTimestamp:         di.MinTimestamp(),
		MaxTimestamp:         di.MaxTimestamp(),
		MaxLocalDeletionTime: math.MinInt32,
		TombstoneHistogram:   NewStreamingHistogram(tombstoneHistogramBinSize),
	}
	r.cells.each(func(c Cell) bool {
		cs.Count++
		if c.Timestamp() < cs.MinTimestamp {
			cs.MinTimestamp = c.Timestamp()
		}
		if c.Timestamp() > cs.MaxTimestamp {
			cs.MaxTimestamp = c.Timestamp()
		}
		ldt := c.LocalDeletionTime()
		if ldt > cs.MaxLocalDeletionTime {
			cs.MaxLocalDeletionTime = ldt
		}
		if ldt < NoDeletionTime {
			cs.TombstoneHistogram.Update(int64(ldt))
		}
		// cells arrive in comparator order
		if cs.MinName == nil {
			cs.MinName = c.Name()
		}
		cs.MaxName = c.Name()
		return true
	})
	return cs
}
