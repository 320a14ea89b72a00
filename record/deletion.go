package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"math"

	"github.com/bdeggleston/rowstore/metadata"
)

// marks when a partition or a range of names was deleted.
// MarkedForDeleteAt is the write timestamp of the delete,
// LocalDeletionTime is the wall clock second it happened, used
// for tombstone garbage collection
type DeletionTime struct {
	MarkedForDeleteAt int64
	LocalDeletionTime int32
}

// the "no deletion" sentinel
var LiveDeletionTime = DeletionTime{MarkedForDeleteAt: math.MinInt64, LocalDeletionTime: NoDeletionTime}

func (dt DeletionTime) IsLive() bool {
	return dt == LiveDeletionTime
}

func (dt DeletionTime) Supersedes(other DeletionTime) bool {
	return dt.MarkedForDeleteAt > other.MarkedForDeleteAt
}

// true once the tombstone has aged past the gc threshold
func (dt DeletionTime) IsGCable(gcBefore int32) bool {
	return !dt.IsLive() && dt.LocalDeletionTime < gcBefore
}

func (dt DeletionTime) IsDeleted(c Cell) bool {
	return c.Timestamp() <= dt.MarkedForDeleteAt
}

func (dt DeletionTime) String() string {
	if dt.IsLive() {
		return "deletedAt=-, localDeletion=-"
	}
	return fmt.Sprintf("deletedAt=%v, localDeletion=%v", dt.MarkedForDeleteAt, dt.LocalDeletionTime)
}

// a deletion covering the contiguous span of names [Start, End],
// bounds inclusive per the partition comparator
type RangeTombstone struct {
	Start CellName
	End   CellName
	DeletionTime
}

func NewRangeTombstone(start CellName, end CellName, markedForDeleteAt int64, localDeletionTime int32) RangeTombstone {
	return RangeTombstone{
		Start:        start,
		End:          end,
		DeletionTime: DeletionTime{MarkedForDeleteAt: markedForDeleteAt, LocalDeletionTime: localDeletionTime},
	}
}

func (rt RangeTombstone) Contains(cmp metadata.Comparator, name CellName) bool {
	return cmp.Compare(rt.Start, name) <= 0 && cmp.Compare(name, rt.End) <= 0
}

func (rt RangeTombstone) equal(other RangeTombstone) bool {
	return rt.DeletionTime == other.DeletionTime &&
		bytes.Equal(rt.Start, other.Start) &&
		bytes.Equal(rt.End, other.End)
}

func (rt RangeTombstone) String() string {
	return fmt.Sprintf("RangeTombstone([%s,%s] %v)", rt.Start, rt.End, rt.DeletionTime)
}

// tracks the partition level tombstone and an ordered,
// non-overlapping set of range tombstones.
//
// DeletionInfo is not internally synchronized. Records mutate it
// copy-on-write; a *DeletionInfo obtained from a record is a
// point-in-time snapshot and must be treated as read-only
type DeletionInfo struct {
	topLevel DeletionTime
	ranges   []RangeTombstone // sorted by Start, non-overlapping
	cmp      metadata.Comparator
}

func NewDeletionInfo(cmp metadata.Comparator) *DeletionInfo {
	if cmp == nil {
		panic("deletion info requires a comparator")
	}
	return &DeletionInfo{topLevel: LiveDeletionTime, cmp: cmp}
}

func NewDeletionInfoAt(dt DeletionTime, cmp metadata.Comparator) *DeletionInfo {
	di := NewDeletionInfo(cmp)
	di.topLevel = dt
	return di
}

func (d *DeletionInfo) TopLevel() DeletionTime { return d.topLevel }

func (d *DeletionInfo) Ranges() []RangeTombstone { return d.ranges }

func (d *DeletionInfo) IsLive() bool {
	return d.topLevel.IsLive() && len(d.ranges) == 0
}

// applies a partition level delete, keeping the later of the
// two marks
func (d *DeletionInfo) DeleteAt(dt DeletionTime) {
	if dt.Supersedes(d.topLevel) {
		d.topLevel = dt
	}
}

// inserts a range tombstone, maintaining the sorted non-overlapping
// invariant. Overlapping ranges are coalesced: the union of their
// spans, deleted at the superseding (later) mark. The result is
// independent of insertion order
func (d *DeletionInfo) AddRange(rt RangeTombstone) {
	if d.cmp.Compare(rt.Start, rt.End) > 0 {
		panic(fmt.Sprintf("inverted range tombstone: %v", rt))
	}

	// locate the window of existing ranges overlapping rt
	lo := 0
	for lo < len(d.ranges) && d.cmp.Compare(d.ranges[lo].End, rt.Start) < 0 {
		lo++
	}
	hi := lo
	for hi < len(d.ranges) && d.cmp.Compare(d.ranges[hi].Start, rt.End) <= 0 {
		hi++
	}

	merged := rt
	for _, existing := range d.ranges[lo:hi] {
		if d.cmp.Compare(existing.Start, merged.Start) < 0 {
			merged.Start = existing.Start
		}
		if d.cmp.Compare(existing.End, merged.End) > 0 {
			merged.End = existing.End
		}
		if existing.Supersedes(merged.DeletionTime) ||
			(existing.MarkedForDeleteAt == merged.MarkedForDeleteAt &&
				existing.LocalDeletionTime > merged.LocalDeletionTime) {
			merged.DeletionTime = existing.DeletionTime
		}
	}

	out := make([]RangeTombstone, 0, len(d.ranges)-(hi-lo)+1)
	out = append(out, d.ranges[:lo]...)
	out = append(out, merged)
	out = append(out, d.ranges[hi:]...)
	d.ranges = out
}

// unions another deletion info into this one
func (d *DeletionInfo) Merge(other *DeletionInfo) {
	if other == nil {
		return
	}
	d.DeleteAt(other.topLevel)
	for _, rt := range other.ranges {
		d.AddRange(rt)
	}
}

// true if a cell written at ts under the given name is shadowed by
// the partition tombstone or a covering range tombstone
func (d *DeletionInfo) IsDeleted(name CellName, ts int64) bool {
	if ts <= d.topLevel.MarkedForDeleteAt {
		return true
	}
	if len(d.ranges) == 0 {
		return false
	}
	// ranges are non-overlapping, at most one can cover the name
	lo, hi := 0, len(d.ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.cmp.Compare(d.ranges[mid].End, name) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(d.ranges) {
		return false
	}
	rt := d.ranges[lo]
	return d.cmp.Compare(rt.Start, name) <= 0 && ts <= rt.MarkedForDeleteAt
}

func (d *DeletionInfo) IsCellDeleted(c Cell) bool {
	return d.IsDeleted(c.Name(), c.Timestamp())
}

// drops every tombstone that has aged past gcBefore
func (d *DeletionInfo) PurgeTombstones(gcBefore int32) {
	if d.topLevel.IsGCable(gcBefore) {
		d.topLevel = LiveDeletionTime
	}
	kept := d.ranges[:0]
	for _, rt := range d.ranges {
		if !rt.IsGCable(gcBefore) {
			kept = append(kept, rt)
		}
	}
	d.ranges = kept
}

func (d *DeletionInfo) HasPurgeableTombstones(gcBefore int32) bool {
	if d.topLevel.IsGCable(gcBefore) {
		return true
	}
	for _, rt := range d.ranges {
		if rt.IsGCable(gcBefore) {
			return true
		}
	}
	return false
}

func (d *DeletionInfo) MaxTimestamp() int64 {
	max := d.topLevel.MarkedForDeleteAt
	for _, rt := range d.ranges {
		if rt.MarkedForDeleteAt > max {
			max = rt.MarkedForDeleteAt
		}
	}
	return max
}

func (d *DeletionInfo) MinTimestamp() int64 {
	if d.IsLive() {
		return math.MaxInt64
	}
	min := int64(math.MaxInt64)
	if !d.topLevel.IsLive() {
		min = d.topLevel.MarkedForDeleteAt
	}
	for _, rt := range d.ranges {
		if rt.MarkedForDeleteAt < min {
			min = rt.MarkedForDeleteAt
		}
	}
	return min
}

func (d *DeletionInfo) Equal(other *DeletionInfo) bool {
	if other == nil {
		return false
	}
	if d.topLevel != other.topLevel {
		return false
	}
	if len(d.ranges) != len(other.ranges) {
		return false
	}
	for i := range d.ranges {
		if !d.ranges[i].equal(other.ranges[i]) {
			return false
		}
	}
	return true
}

// copies the structure. Name slices are shared, they are never
// mutated in place
func (d *DeletionInfo) Copy() *DeletionInfo {
	ranges := make([]RangeTombstone, len(d.ranges))
	copy(ranges, d.ranges)
	return &DeletionInfo{topLevel: d.topLevel, ranges: ranges, cmp: d.cmp}
}

// a live deletion info contributes nothing, so a record whose
// tombstones were all purged digests the same as a fresh one
func (d *DeletionInfo) updateDigest(h hash.Hash) {
	if !d.topLevel.IsLive() {
		binary.Write(h, binary.LittleEndian, d.topLevel.MarkedForDeleteAt)
		binary.Write(h, binary.LittleEndian, d.topLevel.LocalDeletionTime)
	}
	for _, rt := range d.ranges {
		binary.Write(h, binary.LittleEndian, uint32(len(rt.Start)))
		h.Write(rt.Start)
		binary.Write(h, binary.LittleEndian, uint32(len(rt.End)))
		h.Write(rt.End)
		binary.Write(h, binary.LittleEndian, rt.MarkedForDeleteAt)
		binary.Write(h, binary.LittleEndian, rt.LocalDeletionTime)
	}
}

func (d *DeletionInfo) String() string {
	if len(d.ranges) == 0 {
		return fmt.Sprintf("{%v}", d.topLevel)
	}
	return fmt.Sprintf("{%v, ranges=%v}", d.topLevel, d.ranges)
}

// answers deletion queries for a sequence of names visited in
// comparator order, advancing an internal cursor instead of
// searching on every call. Built from a snapshot of the deletion
// info, so it stays consistent while new tombstones are appended
// to the owning record
type InOrderTester struct {
	di  *DeletionInfo
	idx int
}

func (d *DeletionInfo) InOrderTester() *InOrderTester {
	return &InOrderTester{di: d}
}

// names must be presented in comparator order; out of order
// queries give undefined results
func (t *InOrderTester) IsDeleted(name CellName, ts int64) bool {
	d := t.di
	if ts <= d.topLevel.MarkedForDeleteAt {
		return true
	}
	for t.idx < len(d.ranges) && d.cmp.Compare(d.ranges[t.idx].End, name) < 0 {
		t.idx++
	}
	if t.idx == len(d.ranges) {
		return false
	}
	rt := d.ranges[t.idx]
	return d.cmp.Compare(rt.Start, name) <= 0 && ts <= rt.MarkedForDeleteAt
}

func (t *InOrderTester) IsCellDeleted(c Cell) bool {
	return t.IsDeleted(c.Name(), c.Timestamp())
}
