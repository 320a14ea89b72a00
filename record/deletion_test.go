package record

import (
	"testing"

	"github.com/bdeggleston/rowstore/metadata"
	"github.com/bdeggleston/rowstore/testing_helpers"
)

func newTestDeletionInfo() *DeletionInfo {
	return NewDeletionInfo(metadata.BytesComparator{})
}

func TestDeletionTimeSentinel(t *testing.T) {
	testing_helpers.AssertEqual(t, "live", true, LiveDeletionTime.IsLive())
	testing_helpers.AssertEqual(t, "not gcable", false, LiveDeletionTime.IsGCable(100))

	dt := DeletionTime{MarkedForDeleteAt: 10, LocalDeletionTime: 50}
	testing_helpers.AssertEqual(t, "not live", false, dt.IsLive())
	testing_helpers.AssertEqual(t, "gcable", true, dt.IsGCable(60))
	testing_helpers.AssertEqual(t, "not yet gcable", false, dt.IsGCable(50))
}

func TestTopLevelDeleteLaterWins(t *testing.T) {
	di := newTestDeletionInfo()
	di.DeleteAt(DeletionTime{MarkedForDeleteAt: 10, LocalDeletionTime: 100})
	di.DeleteAt(DeletionTime{MarkedForDeleteAt: 5, LocalDeletionTime: 200})

	testing_helpers.AssertEqual(t, "markedAt", int64(10), di.TopLevel().MarkedForDeleteAt)
	testing_helpers.AssertEqual(t, "localDeletion", int32(100), di.TopLevel().LocalDeletionTime)
}

func TestRangeInsertKeepsOrder(t *testing.T) {
	di := newTestDeletionInfo()
	di.AddRange(NewRangeTombstone(CellName("m"), CellName("p"), 5, 50))
	di.AddRange(NewRangeTombstone(CellName("a"), CellName("c"), 3, 30))
	di.AddRange(NewRangeTombstone(CellName("x"), CellName("z"), 7, 70))

	ranges := di.Ranges()
	testing_helpers.AssertEqual(t, "num ranges", 3, len(ranges))
	testing_helpers.AssertEqual(t, "first", "a", string(ranges[0].Start))
	testing_helpers.AssertEqual(t, "second", "m", string(ranges[1].Start))
	testing_helpers.AssertEqual(t, "third", "x", string(ranges[2].Start))
}

// overlapping ranges coalesce into the union of their spans at the
// later mark, independent of insertion order
func TestRangeInsertCoalescesOverlap(t *testing.T) {
	forward := newTestDeletionInfo()
	forward.AddRange(NewRangeTombstone(CellName("a"), CellName("f"), 5, 50))
	forward.AddRange(NewRangeTombstone(CellName("d"), CellName("k"), 8, 80))

	reversed := newTestDeletionInfo()
	reversed.AddRange(NewRangeTombstone(CellName("d"), CellName("k"), 8, 80))
	reversed.AddRange(NewRangeTombstone(CellName("a"), CellName("f"), 5, 50))

	for name, di := range map[string]*DeletionInfo{"forward": forward, "reversed": reversed} {
		ranges := di.Ranges()
		testing_helpers.AssertEqual(t, name+" num ranges", 1, len(ranges))
		testing_helpers.AssertEqual(t, name+" start", "a", string(ranges[0].Start))
		testing_helpers.AssertEqual(t, name+" end", "k", string(ranges[0].End))
		testing_helpers.AssertEqual(t, name+" markedAt", int64(8), ranges[0].MarkedForDeleteAt)
	}
	testing_helpers.AssertEqual(t, "orders agree", true, forward.Equal(reversed))
}

func TestRangeInsertSwallowsMultiple(t *testing.T) {
	di := newTestDeletionInfo()
	di.AddRange(NewRangeTombstone(CellName("b"), CellName("c"), 2, 20))
	di.AddRange(NewRangeTombstone(CellName("e"), CellName("f"), 3, 30))
	di.AddRange(NewRangeTombstone(CellName("a"), CellName("z"), 9, 90))

	ranges := di.Ranges()
	testing_helpers.AssertEqual(t, "num ranges", 1, len(ranges))
	testing_helpers.AssertEqual(t, "markedAt", int64(9), ranges[0].MarkedForDeleteAt)
}

func TestIsDeleted(t *testing.T) {
	di := newTestDeletionInfo()
	di.AddRange(NewRangeTombstone(CellName("c"), CellName("g"), 10, 100))

	testing_helpers.AssertEqual(t, "covered, older write", true, di.IsDeleted(CellName("d"), 8))
	testing_helpers.AssertEqual(t, "covered, equal write", true, di.IsDeleted(CellName("d"), 10))
	testing_helpers.AssertEqual(t, "covered, newer write", false, di.IsDeleted(CellName("d"), 11))
	testing_helpers.AssertEqual(t, "below range", false, di.IsDeleted(CellName("a"), 8))
	testing_helpers.AssertEqual(t, "above range", false, di.IsDeleted(CellName("x"), 8))
	testing_helpers.AssertEqual(t, "start bound", true, di.IsDeleted(CellName("c"), 8))
	testing_helpers.AssertEqual(t, "end bound", true, di.IsDeleted(CellName("g"), 8))

	di.DeleteAt(DeletionTime{MarkedForDeleteAt: 20, LocalDeletionTime: 200})
	testing_helpers.AssertEqual(t, "partition tombstone", true, di.IsDeleted(CellName("a"), 15))
	testing_helpers.AssertEqual(t, "newer than partition tombstone", false, di.IsDeleted(CellName("a"), 25))
}

// the in-order tester answers the same questions as IsDeleted when
// names arrive in comparator order
func TestInOrderTester(t *testing.T) {
	di := newTestDeletionInfo()
	di.AddRange(NewRangeTombstone(CellName("b"), CellName("c"), 10, 100))
	di.AddRange(NewRangeTombstone(CellName("f"), CellName("h"), 20, 200))

	tester := di.InOrderTester()
	testing_helpers.AssertEqual(t, "a", false, tester.IsDeleted(CellName("a"), 5))
	testing_helpers.AssertEqual(t, "b", true, tester.IsDeleted(CellName("b"), 5))
	testing_helpers.AssertEqual(t, "d", false, tester.IsDeleted(CellName("d"), 5))
	testing_helpers.AssertEqual(t, "g", true, tester.IsDeleted(CellName("g"), 5))
	testing_helpers.AssertEqual(t, "g newer", false, tester.IsDeleted(CellName("g"), 25))
	testing_helpers.AssertEqual(t, "z", false, tester.IsDeleted(CellName("z"), 5))
}

func TestMergeUnionsDeletions(t *testing.T) {
	a := newTestDeletionInfo()
	a.DeleteAt(DeletionTime{MarkedForDeleteAt: 5, LocalDeletionTime: 50})
	a.AddRange(NewRangeTombstone(CellName("a"), CellName("c"), 3, 30))

	b := newTestDeletionInfo()
	b.DeleteAt(DeletionTime{MarkedForDeleteAt: 9, LocalDeletionTime: 90})
	b.AddRange(NewRangeTombstone(CellName("x"), CellName("z"), 4, 40))

	a.Merge(b)
	testing_helpers.AssertEqual(t, "topLevel", int64(9), a.TopLevel().MarkedForDeleteAt)
	testing_helpers.AssertEqual(t, "num ranges", 2, len(a.Ranges()))
}

func TestPurgeTombstones(t *testing.T) {
	di := newTestDeletionInfo()
	di.DeleteAt(DeletionTime{MarkedForDeleteAt: 5, LocalDeletionTime: 50})
	di.AddRange(NewRangeTombstone(CellName("a"), CellName("c"), 3, 30))
	di.AddRange(NewRangeTombstone(CellName("x"), CellName("z"), 4, 80))

	testing_helpers.AssertEqual(t, "purgeable", true, di.HasPurgeableTombstones(60))

	di.PurgeTombstones(60)
	testing_helpers.AssertEqual(t, "topLevel purged", true, di.TopLevel().IsLive())
	testing_helpers.AssertEqual(t, "num ranges", 1, len(di.Ranges()))
	testing_helpers.AssertEqual(t, "survivor", "x", string(di.Ranges()[0].Start))
	testing_helpers.AssertEqual(t, "nothing left to purge", false, di.HasPurgeableTombstones(60))
}

func TestDeletionInfoCopyIsIndependent(t *testing.T) {
	di := newTestDeletionInfo()
	di.AddRange(NewRangeTombstone(CellName("a"), CellName("c"), 3, 30))

	cp := di.Copy()
	cp.AddRange(NewRangeTombstone(CellName("x"), CellName("z"), 4, 40))
	cp.DeleteAt(DeletionTime{MarkedForDeleteAt: 9, LocalDeletionTime: 90})

	testing_helpers.AssertEqual(t, "source ranges", 1, len(di.Ranges()))
	testing_helpers.AssertEqual(t, "source topLevel live", true, di.TopLevel().IsLive())
	testing_helpers.AssertEqual(t, "copy ranges", 2, len(cp.Ranges()))
}
