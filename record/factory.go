package record

import (
	"fmt"

	"github.com/bdeggleston/rowstore/metadata"
)

// selects which cell container a record is built on
type Strategy int

const (
	// slice backed, single writer / many reader with external
	// coordination. Merge scratch space, repair buffers
	SingleWriter Strategy = iota

	// copy-on-write, safe for concurrent mutation. The live
	// mutable partition buffer
	Concurrent
)

func (s Strategy) String() string {
	switch s {
	case SingleWriter:
		return "single-writer"
	case Concurrent:
		return "concurrent"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// expected insertion order, a layout hint only. Reverse never
// changes the order cells sort or iterate in
type InsertHint int

const (
	Forward InsertHint = iota
	Reverse
)

func (h InsertHint) String() string {
	if h == Reverse {
		return "reverse"
	}
	return "forward"
}

// creates records behind a single capability contract so calling
// code stays agnostic to the container strategy in use
type Factory struct {
	Strategy Strategy
	Hint     InsertHint
}

func (f Factory) New(md *metadata.Metadata) *Record {
	if md == nil {
		panic("record requires metadata")
	}
	var cells cellContainer
	switch f.Strategy {
	case Concurrent:
		// the hint doesn't matter here, writers copy on
		// every insert regardless
		cells = newAtomicCells(md.Comparator())
	default:
		cells = newArrayCells(md.Comparator(), f.Hint == Reverse)
	}
	r := &Record{metadata: md, factory: f, cells: cells}
	r.di.Store(NewDeletionInfo(md.Comparator()))
	return r
}

// NewRecord creates an empty single-writer record with forward
// insertion layout
func NewRecord(md *metadata.Metadata) *Record {
	return Factory{}.New(md)
}
