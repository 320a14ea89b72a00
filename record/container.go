package record

import (
	"github.com/bdeggleston/rowstore/metadata"
)

// the sorted container a record keeps its cells in. Insertion
// reconciles against any existing cell of the same name, so the
// container never holds two entries for one name.
//
// Whether an implementation is safe for concurrent mutation is up
// to the implementing type; callers pick a strategy through the
// Factory
type cellContainer interface {
	// adds the cell, reconciling with any existing cell of the
	// same name. Copies buffers through the arena if one is given
	add(c Cell, arena Arena)

	// returns the cell under the given name, or nil
	get(name CellName) Cell

	// visits cells in comparator order until fn returns false
	each(fn func(Cell) bool)

	// visits cells in reverse comparator order
	eachReverse(fn func(Cell) bool)

	// drops every cell the predicate rejects, visiting in
	// comparator order
	filter(keep func(Cell) bool)

	count() int

	clear()
}

// locates name in an ascending run of cells. Returns the index of
// the cell, or the insertion point and false
func searchCells(cmp metadata.Comparator, cells []Cell, name CellName) (int, bool) {
	lo, hi := 0, len(cells)
	for lo < hi {
		mid := (lo + hi) / 2
		switch c := cmp.Compare(cells[mid].Name(), name); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// inserts c into an ascending run of cells, reconciling on name
// collision. May mutate cells in place when it has capacity; the
// returned slice is the container's new backing
func insertCell(cmp metadata.Comparator, cells []Cell, c Cell) []Cell {
	idx, found := searchCells(cmp, cells, c.Name())
	if found {
		cells[idx] = cells[idx].Reconcile(c)
		return cells
	}
	cells = append(cells, nil)
	copy(cells[idx+1:], cells[idx:])
	cells[idx] = c
	return cells
}
