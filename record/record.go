/**

per-partition record merge engine

a Record holds every cell belonging to one partition key together
with its deletion markers, and deterministically reconciles
concurrently produced versions of the partition into one state.
Merge is commutative, associative, and idempotent, so replicas that
see writes and deletes in different orders converge.

 */
package record

import (
	"fmt"
	"hash"
	"math"
	"sync"
	"sync/atomic"

	logging "github.com/op/go-logging"

	"github.com/bdeggleston/rowstore/metadata"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("record")
}

// all cells and deletion state for one partition key
type Record struct {
	metadata *metadata.Metadata
	factory  Factory
	cells    cellContainer

	// deletion info is published copy-on-write so readers always
	// see a consistent snapshot; dmu serializes the writers
	dmu sync.Mutex
	di  atomic.Pointer[DeletionInfo]
}

func (r *Record) Metadata() *metadata.Metadata { return r.metadata }

func (r *Record) Comparator() metadata.Comparator { return r.metadata.Comparator() }

func (r *Record) Factory() Factory { return r.factory }

// returns the current deletion info snapshot. Read-only; mutate
// through Delete/DeleteAt/DeleteRange
func (r *Record) DeletionInfo() *DeletionInfo {
	return r.di.Load()
}

func (r *Record) SetDeletionInfo(di *DeletionInfo) {
	if di == nil {
		panic("nil deletion info")
	}
	r.dmu.Lock()
	r.di.Store(di)
	r.dmu.Unlock()
}

func (r *Record) mutateDeletionInfo(fn func(*DeletionInfo)) {
	r.dmu.Lock()
	next := r.di.Load().Copy()
	fn(next)
	r.di.Store(next)
	r.dmu.Unlock()
}

// applies another record's tombstones to this one: the partition
// tombstone becomes the later of the two marks, range tombstones
// are unioned
func (r *Record) Delete(di *DeletionInfo) {
	if di == nil || di.IsLive() {
		return
	}
	r.mutateDeletionInfo(func(d *DeletionInfo) { d.Merge(di) })
}

func (r *Record) DeleteAt(dt DeletionTime) {
	r.mutateDeletionInfo(func(d *DeletionInfo) { d.DeleteAt(dt) })
}

func (r *Record) DeleteRange(rt RangeTombstone) {
	r.mutateDeletionInfo(func(d *DeletionInfo) { d.AddRange(rt) })
}

// returns a tester over the deletion info as of now. Remains
// consistent while tombstones are concurrently appended, provided
// the tester itself is queried in comparator order
func (r *Record) InOrderDeletionTester() *InOrderTester {
	return r.DeletionInfo().InOrderTester()
}

// adds a cell, reconciling with any previous cell of the same name.
// The container never ends up with two entries for one name
func (r *Record) AddCell(c Cell, arena Arena) {
	r.cells.add(c, arena)
}

// adds a live cell. Schemas with counter semantics must use
// AddCounter instead
func (r *Record) AddNamed(name CellName, value []byte, timestamp int64) error {
	if r.metadata.IsCommutative() {
		panic("cannot add non-counter cells to a commutative partition")
	}
	if err := r.metadata.Validator().Validate(value); err != nil {
		return err
	}
	r.AddCell(NewCell(name, value, timestamp), nil)
	return nil
}

func (r *Record) AddExpiring(name CellName, value []byte, timestamp int64, ttl int32, now int32) error {
	if r.metadata.IsCommutative() {
		panic("cannot add non-counter cells to a commutative partition")
	}
	if err := r.metadata.Validator().Validate(value); err != nil {
		return err
	}
	r.AddCell(NewExpiringCell(name, value, timestamp, ttl, now), nil)
	return nil
}

func (r *Record) AddCounter(name CellName, delta int64, timestamp int64) {
	r.AddCell(NewCounterUpdateCell(name, delta, timestamp), nil)
}

func (r *Record) AddTombstone(name CellName, localDeletionTime int32, timestamp int64) {
	r.AddCell(NewDeletedCell(name, localDeletionTime, timestamp), nil)
}

// adds the cell unless it is an obsolete tombstone (aged past
// gcBefore) or is shadowed by the already-applied deletion info.
// The tester must be positioned no further than the cell's name
func (r *Record) AddIfRelevant(c Cell, tester *InOrderTester, gcBefore int32) {
	if c.LocalDeletionTime() >= gcBefore && !tester.IsCellDeleted(c) {
		r.AddCell(c, nil)
	}
}

// merges another version of this partition into this record:
// applies its deletion info first, then reconciles every cell
// against the resulting deletion state, so a delete can never be
// resurrected regardless of merge order. Shadowing is symmetric:
// cells this record already holds that the merged deletion info
// covers are dropped in the same pass as shadowed incoming cells,
// so either merge order lands on the same cell set and digest.
// Cell buffers are copied through the arena if one is given.
//
// Merging records of different schemas is a caller bug and panics
func (r *Record) Resolve(other *Record, arena Arena) {
	if other == nil {
		return
	}
	r.assertComparable(other)
	r.Delete(other.DeletionInfo())
	r.dropShadowed()
	tester := r.InOrderDeletionTester()
	other.Each(func(c Cell) bool {
		if arena != nil {
			c = c.localCopy(arena)
		}
		r.AddIfRelevant(c, tester, math.MinInt32)
		return true
	})
	statInc("record.resolve")
}

// evicts cells covered by the current deletion info. Called after a
// deletion info merge; a cell shadowed by the union must not survive
// just because it was stored before the tombstone arrived
func (r *Record) dropShadowed() {
	di := r.DeletionInfo()
	if di.IsLive() {
		return
	}
	tester := di.InOrderTester()
	r.cells.filter(func(c Cell) bool {
		return !tester.IsCellDeleted(c)
	})
}

// computes the delta needed to bring this record up to other's
// state, other being a superset of this record's true state. The
// result mirrors other's deletion info so a receiver replaying the
// diff reconstructs the same deletion state. Returns nil when there
// is no difference
func (r *Record) Diff(other *Record) *Record {
	r.assertComparable(other)
	diff := Factory{Strategy: SingleWriter}.New(r.metadata)
	diff.Delete(other.DeletionInfo())

	// other was produced by Resolve, so it holds no cells shadowed
	// by its own deletion info
	other.Each(func(external Cell) bool {
		local := r.GetCell(external.Name())
		if local == nil {
			diff.AddCell(external, nil)
		} else if d := local.Diff(external); d != nil {
			diff.AddCell(d, nil)
		}
		return true
	})

	if diff.Count() == 0 && r.DeletionInfo().Equal(other.DeletionInfo()) {
		return nil
	}
	statInc("record.diff")
	return diff
}

// returns the delta between two records, either of which may be nil
func Diff(local *Record, incoming *Record) *Record {
	if local == nil {
		return incoming
	}
	return local.Diff(incoming)
}

// returns the cell under the given name, or nil if it isn't present
func (r *Record) GetCell(name CellName) Cell {
	return r.cells.get(name)
}

// visits cells in comparator order until fn returns false
func (r *Record) Each(fn func(Cell) bool) {
	r.cells.each(fn)
}

func (r *Record) EachReverse(fn func(Cell) bool) {
	r.cells.eachReverse(fn)
}

// the cells in comparator order. Builds a fresh slice; iterate with
// Each to avoid the copy
func (r *Record) Cells() []Cell {
	out := make([]Cell, 0, r.cells.count())
	r.cells.each(func(c Cell) bool {
		out = append(out, c)
		return true
	})
	return out
}

func (r *Record) ReverseCells() []Cell {
	out := make([]Cell, 0, r.cells.count())
	r.cells.eachReverse(func(c Cell) bool {
		out = append(out, c)
		return true
	})
	return out
}

func (r *Record) Count() int { return r.cells.count() }

func (r *Record) Clear() {
	r.cells.clear()
	r.SetDeletionInfo(NewDeletionInfo(r.metadata.Comparator()))
}

// true if the record holds no cells and no deletion info
func (r *Record) IsEmpty() bool {
	return r.DeletionInfo().IsLive() && r.cells.count() == 0
}

func (r *Record) IsMarkedForDelete() bool {
	return !r.DeletionInfo().IsLive()
}

func (r *Record) HasOnlyTombstones(now int32) bool {
	only := true
	r.cells.each(func(c Cell) bool {
		if c.IsLive(now) {
			only = false
			return false
		}
		return true
	})
	return only
}

func (r *Record) MaxTimestamp() int64 {
	max := r.DeletionInfo().MaxTimestamp()
	r.cells.each(func(c Cell) bool {
		if c.Timestamp() > max {
			max = c.Timestamp()
		}
		return true
	})
	return max
}

func (r *Record) DataSize() int {
	size := 0
	r.cells.each(func(c Cell) bool {
		size += c.DataSize()
		return true
	})
	return size
}

// drops the partition tombstone and any range tombstone that has
// aged past gcBefore. Per-cell tombstones are the compaction
// caller's job: they can only go once no retained covering
// tombstone still needs them, see AddIfRelevant
func (r *Record) PurgeTombstones(gcBefore int32) {
	r.mutateDeletionInfo(func(d *DeletionInfo) { d.PurgeTombstones(gcBefore) })
	statInc("record.purge")
}

// cheap pre-check for whether a gc rewrite of this record would
// remove anything
func (r *Record) HasIrrelevantData(gcBefore int32) bool {
	if r.DeletionInfo().HasPurgeableTombstones(gcBefore) {
		return true
	}
	found := false
	tester := r.InOrderDeletionTester()
	r.cells.each(func(c Cell) bool {
		if tester.IsCellDeleted(c) || c.LocalDeletionTime() < gcBefore {
			found = true
			return false
		}
		return true
	})
	return found
}

// a new record with the same deletion info applied but an empty
// cell container. Used as a scratch accumulator; it never shares
// container identity with the source
func (r *Record) CloneShallow() *Record {
	clone := r.factory.New(r.metadata)
	clone.Delete(r.DeletionInfo())
	return clone
}

// deep-ish copy: cell instances are shared (they're immutable),
// the containers are not
func (r *Record) Clone() *Record {
	clone := r.CloneShallow()
	r.cells.each(func(c Cell) bool {
		clone.AddCell(c, nil)
		return true
	})
	return clone
}

// records are equal when they describe the same partition shape,
// the same deletion state, and the same content digest. Digest
// equality is what downstream consistency checks rely on, so it is
// the definition here too
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	if r.metadata.ID() != other.metadata.ID() {
		return false
	}
	if !r.DeletionInfo().Equal(other.DeletionInfo()) {
		return false
	}
	return DigestsEqual(Digest(r), Digest(other))
}

func (r *Record) updateDigest(h hash.Hash) {
	r.cells.each(func(c Cell) bool {
		c.updateDigest(h)
		return true
	})
	r.DeletionInfo().updateDigest(h)
}

func (r *Record) assertComparable(other *Record) {
	if other.metadata.ID() != r.metadata.ID() {
		panic(fmt.Sprintf("schema mismatch: %v / %v", r.metadata, other.metadata))
	}
}

func (r *Record) String() string {
	names := make([]string, 0, r.cells.count())
	r.cells.each(func(c Cell) bool {
		names = append(names, string(c.Name()))
		return true
	})
	marked := ""
	if r.IsMarkedForDelete() {
		marked = fmt.Sprintf(" -%v-", r.DeletionInfo())
	}
	return fmt.Sprintf("Record(%v%v %v)", r.metadata.Name(), marked, names)
}
