package record

import (
	"github.com/bdeggleston/rowstore/metadata"
)

// slice backed container for single writer access. Not safe for
// concurrent mutation; external coordination is the caller's job.
//
// The reversed flag is an insertion order hint only: it says the
// caller expects to insert names in descending order, so the cheap
// append check happens at the front instead of the back. It never
// changes the sort order cells are returned in
type arrayCells struct {
	cmp      metadata.Comparator
	reversed bool
	cells    []Cell // ascending
}

func newArrayCells(cmp metadata.Comparator, reversed bool) *arrayCells {
	return &arrayCells{cmp: cmp, reversed: reversed}
}

func (a *arrayCells) add(c Cell, arena Arena) {
	if arena != nil {
		c = c.localCopy(arena)
	}
	n := len(a.cells)
	if n == 0 {
		a.cells = append(a.cells, c)
		return
	}
	if a.reversed {
		// expected case: new name sorts before everything held
		if a.cmp.Compare(c.Name(), a.cells[0].Name()) < 0 {
			a.cells = append(a.cells, nil)
			copy(a.cells[1:], a.cells)
			a.cells[0] = c
			return
		}
	} else {
		// expected case: new name sorts after everything held
		if a.cmp.Compare(a.cells[n-1].Name(), c.Name()) < 0 {
			a.cells = append(a.cells, c)
			return
		}
	}
	a.cells = insertCell(a.cmp, a.cells, c)
}

func (a *arrayCells) get(name CellName) Cell {
	idx, found := searchCells(a.cmp, a.cells, name)
	if !found {
		return nil
	}
	return a.cells[idx]
}

func (a *arrayCells) each(fn func(Cell) bool) {
	for _, c := range a.cells {
		if !fn(c) {
			return
		}
	}
}

func (a *arrayCells) eachReverse(fn func(Cell) bool) {
	for i := len(a.cells) - 1; i >= 0; i-- {
		if !fn(a.cells[i]) {
			return
		}
	}
}

func (a *arrayCells) filter(keep func(Cell) bool) {
	kept := a.cells[:0]
	for _, c := range a.cells {
		if keep(c) {
			kept = append(kept, c)
		}
	}
	a.cells = kept
}

func (a *arrayCells) count() int { return len(a.cells) }

func (a *arrayCells) clear() { a.cells = nil }
