package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
)

// name of a cell within a partition, ordered by the
// partition's comparator
type CellName []byte

// localDeletionTime value meaning "never expires / never deleted"
const NoDeletionTime int32 = math.MaxInt32

// enum identifying the cell variant on the wire
type cellTag byte

const (
	tagLive cellTag = iota
	tagDeleted
	tagExpiring
	tagCounterUpdate
)

// the smallest named, timestamped unit of data within a partition.
// Cells are immutable once constructed
type Cell interface {
	Name() CellName
	Value() []byte

	// write time, in the cluster's logical timestamp unit
	Timestamp() int64

	// wall clock seconds at which this cell was deleted or expires.
	// NoDeletionTime for plain live cells
	LocalDeletionTime() int32

	// true if the cell holds readable data at the given
	// wall clock time (seconds)
	IsLive(now int32) bool

	// combines this cell with a concurrently written version of
	// the same name, returning the winner. Commutative, associative,
	// and idempotent for identical cells
	Reconcile(other Cell) Cell

	// returns the delta needed to bring this cell up to the state
	// of other, or nil if none is needed
	Diff(other Cell) Cell

	DataSize() int
	Equal(other Cell) bool

	localCopy(arena Arena) Cell
	tag() cellTag
	updateDigest(h hash.Hash)
}

// normal data
type LiveCell struct {
	name      CellName
	value     []byte
	timestamp int64
}

func NewCell(name CellName, value []byte, timestamp int64) *LiveCell {
	return &LiveCell{name: name, value: value, timestamp: timestamp}
}

func (c *LiveCell) Name() CellName            { return c.name }
func (c *LiveCell) Value() []byte             { return c.value }
func (c *LiveCell) Timestamp() int64          { return c.timestamp }
func (c *LiveCell) LocalDeletionTime() int32  { return NoDeletionTime }
func (c *LiveCell) IsLive(_ int32) bool       { return true }
func (c *LiveCell) Reconcile(other Cell) Cell { return reconcileCells(c, other) }
func (c *LiveCell) Diff(other Cell) Cell      { return diffCells(c, other) }
func (c *LiveCell) DataSize() int             { return len(c.name) + len(c.value) + 8 }
func (c *LiveCell) Equal(other Cell) bool     { return cellsEqual(c, other) }
func (c *LiveCell) tag() cellTag              { return tagLive }

func (c *LiveCell) localCopy(arena Arena) Cell {
	return NewCell(arena.Clone(c.name), arena.Clone(c.value), c.timestamp)
}

func (c *LiveCell) updateDigest(h hash.Hash) {
	digestCellCommon(h, c)
}

func (c *LiveCell) String() string {
	return fmt.Sprintf("Cell(%s=%s@%v)", c.name, c.value, c.timestamp)
}

// marks a name as deleted at Timestamp. The value is always empty
type DeletedCell struct {
	name              CellName
	timestamp         int64
	localDeletionTime int32
}

func NewDeletedCell(name CellName, localDeletionTime int32, timestamp int64) *DeletedCell {
	return &DeletedCell{name: name, timestamp: timestamp, localDeletionTime: localDeletionTime}
}

func (c *DeletedCell) Name() CellName            { return c.name }
func (c *DeletedCell) Value() []byte             { return nil }
func (c *DeletedCell) Timestamp() int64          { return c.timestamp }
func (c *DeletedCell) LocalDeletionTime() int32  { return c.localDeletionTime }
func (c *DeletedCell) IsLive(_ int32) bool       { return false }
func (c *DeletedCell) Reconcile(other Cell) Cell { return reconcileCells(c, other) }
func (c *DeletedCell) Diff(other Cell) Cell      { return diffCells(c, other) }
func (c *DeletedCell) DataSize() int             { return len(c.name) + 8 + 4 }
func (c *DeletedCell) Equal(other Cell) bool     { return cellsEqual(c, other) }
func (c *DeletedCell) tag() cellTag              { return tagDeleted }

func (c *DeletedCell) localCopy(arena Arena) Cell {
	return NewDeletedCell(arena.Clone(c.name), c.localDeletionTime, c.timestamp)
}

func (c *DeletedCell) updateDigest(h hash.Hash) {
	digestCellCommon(h, c)
	binary.Write(h, binary.LittleEndian, c.localDeletionTime)
}

func (c *DeletedCell) String() string {
	return fmt.Sprintf("DeletedCell(%s@%v)", c.name, c.timestamp)
}

// live data with a finite expiry. Once wall time passes the expiry
// the cell reads as deleted, without being materialized as a tombstone
type ExpiringCell struct {
	name      CellName
	value     []byte
	timestamp int64
	ttl       int32 // seconds
	expiry    int32 // wall clock seconds, doubles as localDeletionTime
}

func NewExpiringCell(name CellName, value []byte, timestamp int64, ttl int32, now int32) *ExpiringCell {
	return &ExpiringCell{name: name, value: value, timestamp: timestamp, ttl: ttl, expiry: now + ttl}
}

func (c *ExpiringCell) Name() CellName            { return c.name }
func (c *ExpiringCell) Value() []byte             { return c.value }
func (c *ExpiringCell) Timestamp() int64          { return c.timestamp }
func (c *ExpiringCell) LocalDeletionTime() int32  { return c.expiry }
func (c *ExpiringCell) TTL() int32                { return c.ttl }
func (c *ExpiringCell) IsLive(now int32) bool     { return now < c.expiry }
func (c *ExpiringCell) Reconcile(other Cell) Cell { return reconcileCells(c, other) }
func (c *ExpiringCell) Diff(other Cell) Cell      { return diffCells(c, other) }
func (c *ExpiringCell) DataSize() int             { return len(c.name) + len(c.value) + 8 + 8 }
func (c *ExpiringCell) Equal(other Cell) bool     { return cellsEqual(c, other) }
func (c *ExpiringCell) tag() cellTag              { return tagExpiring }

func (c *ExpiringCell) localCopy(arena Arena) Cell {
	return &ExpiringCell{
		name:      arena.Clone(c.name),
		value:     arena.Clone(c.value),
		timestamp: c.timestamp,
		ttl:       c.ttl,
		expiry:    c.expiry,
	}
}

func (c *ExpiringCell) updateDigest(h hash.Hash) {
	digestCellCommon(h, c)
	binary.Write(h, binary.LittleEndian, c.ttl)
	binary.Write(h, binary.LittleEndian, c.expiry)
}

func (c *ExpiringCell) String() string {
	return fmt.Sprintf("ExpiringCell(%s=%s@%v ttl=%v)", c.name, c.value, c.timestamp, c.ttl)
}

// delta-only counter representation. Merged by delta accumulation,
// never by timestamp comparison alone
type CounterUpdateCell struct {
	name      CellName
	delta     int64
	timestamp int64
}

func NewCounterUpdateCell(name CellName, delta int64, timestamp int64) *CounterUpdateCell {
	return &CounterUpdateCell{name: name, delta: delta, timestamp: timestamp}
}

func (c *CounterUpdateCell) Name() CellName { return c.name }

func (c *CounterUpdateCell) Value() []byte {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, uint64(c.delta))
	return value
}

func (c *CounterUpdateCell) Delta() int64              { return c.delta }
func (c *CounterUpdateCell) Timestamp() int64          { return c.timestamp }
func (c *CounterUpdateCell) LocalDeletionTime() int32  { return NoDeletionTime }
func (c *CounterUpdateCell) IsLive(_ int32) bool       { return true }
func (c *CounterUpdateCell) Reconcile(other Cell) Cell { return reconcileCells(c, other) }
func (c *CounterUpdateCell) DataSize() int             { return len(c.name) + 8 + 8 }
func (c *CounterUpdateCell) Equal(other Cell) bool     { return cellsEqual(c, other) }
func (c *CounterUpdateCell) tag() cellTag              { return tagCounterUpdate }

// the delta needed to bring this counter up to other's accumulated
// value. A zero net delta yields no diff
func (c *CounterUpdateCell) Diff(other Cell) Cell {
	o, ok := other.(*CounterUpdateCell)
	if !ok {
		return diffCells(c, other)
	}
	net := o.delta - c.delta
	if net == 0 && c.timestamp >= o.timestamp {
		return nil
	}
	ts := c.timestamp
	if o.timestamp > ts {
		ts = o.timestamp
	}
	return NewCounterUpdateCell(c.name, net, ts)
}

func (c *CounterUpdateCell) localCopy(arena Arena) Cell {
	return NewCounterUpdateCell(arena.Clone(c.name), c.delta, c.timestamp)
}

func (c *CounterUpdateCell) updateDigest(h hash.Hash) {
	digestCellCommon(h, c)
}

func (c *CounterUpdateCell) String() string {
	return fmt.Sprintf("CounterUpdateCell(%s+=%v@%v)", c.name, c.delta, c.timestamp)
}

func isTombstone(c Cell) bool {
	_, ok := c.(*DeletedCell)
	return ok
}

// combines two versions of the same cell into one. Counters
// accumulate, everything else is last write wins with a
// deterministic tie break. Deletes are never lost to a concurrently
// timestamped write: on an exact timestamp tie the tombstone wins
func reconcileCells(a Cell, b Cell) Cell {
	ac, aCounter := a.(*CounterUpdateCell)
	bc, bCounter := b.(*CounterUpdateCell)
	if aCounter && bCounter {
		ts := ac.timestamp
		if bc.timestamp > ts {
			ts = bc.timestamp
		}
		return NewCounterUpdateCell(ac.name, ac.delta+bc.delta, ts)
	}
	if aCounter != bCounter {
		panic(fmt.Sprintf("cannot reconcile counter and non-counter cells: %v / %v", a, b))
	}

	if a.Timestamp() != b.Timestamp() {
		if a.Timestamp() > b.Timestamp() {
			return a
		}
		return b
	}

	// exact timestamp tie
	if isTombstone(a) != isTombstone(b) {
		if isTombstone(a) {
			return a
		}
		return b
	}
	if isTombstone(a) {
		// two tombstones for the same delete, keep the
		// fresher deletion time
		if b.LocalDeletionTime() > a.LocalDeletionTime() {
			return b
		}
		return a
	}

	// two live cells, break the tie on value bytes so every
	// replica converges on the same winner
	switch bytes.Compare(a.Value(), b.Value()) {
	case 1:
		return a
	case -1:
		return b
	}
	if b.LocalDeletionTime() > a.LocalDeletionTime() {
		return b
	}
	return a
}

// returns external if it carries state this cell doesn't have,
// nil otherwise
func diffCells(local Cell, external Cell) Cell {
	if external.Timestamp() > local.Timestamp() {
		return external
	}
	if external.Timestamp() == local.Timestamp() && !local.Equal(external) {
		return external
	}
	return nil
}

func cellsEqual(a Cell, b Cell) bool {
	if b == nil {
		return false
	}
	if a.tag() != b.tag() {
		return false
	}
	if a.Timestamp() != b.Timestamp() {
		return false
	}
	if a.LocalDeletionTime() != b.LocalDeletionTime() {
		return false
	}
	if !bytes.Equal(a.Name(), b.Name()) {
		return false
	}
	return bytes.Equal(a.Value(), b.Value())
}

// folds the fields shared by every variant into the digest. Lengths
// are included so adjacent fields can't alias each other
func digestCellCommon(h hash.Hash, c Cell) {
	binary.Write(h, binary.LittleEndian, uint32(len(c.Name())))
	h.Write(c.Name())
	binary.Write(h, binary.LittleEndian, uint32(len(c.Value())))
	h.Write(c.Value())
	binary.Write(h, binary.LittleEndian, c.Timestamp())
	h.Write([]byte{byte(c.tag())})
}
