package record

import (
	"sync"
	"sync/atomic"

	"github.com/bdeggleston/rowstore/metadata"
)

// copy-on-write container safe for concurrent mutation without
// external locking. Writers serialize on a mutex and publish a new
// sorted slice; readers load the current slice and get a consistent
// point-in-time view, never a half-applied merge
type atomicCells struct {
	cmp  metadata.Comparator
	lock sync.Mutex
	snap atomic.Pointer[[]Cell]
}

func newAtomicCells(cmp metadata.Comparator) *atomicCells {
	a := &atomicCells{cmp: cmp}
	empty := []Cell{}
	a.snap.Store(&empty)
	return a
}

func (a *atomicCells) snapshot() []Cell {
	return *a.snap.Load()
}

func (a *atomicCells) add(c Cell, arena Arena) {
	if arena != nil {
		c = c.localCopy(arena)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	cur := a.snapshot()
	next := make([]Cell, len(cur), len(cur)+1)
	copy(next, cur)
	next = insertCell(a.cmp, next, c)
	a.snap.Store(&next)
}

func (a *atomicCells) get(name CellName) Cell {
	cells := a.snapshot()
	idx, found := searchCells(a.cmp, cells, name)
	if !found {
		return nil
	}
	return cells[idx]
}

func (a *atomicCells) each(fn func(Cell) bool) {
	for _, c := range a.snapshot() {
		if !fn(c) {
			return
		}
	}
}

func (a *atomicCells) eachReverse(fn func(Cell) bool) {
	cells := a.snapshot()
	for i := len(cells) - 1; i >= 0; i-- {
		if !fn(cells[i]) {
			return
		}
	}
}

func (a *atomicCells) filter(keep func(Cell) bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	cur := a.snapshot()
	next := make([]Cell, 0, len(cur))
	for _, c := range cur {
		if keep(c) {
			next = append(next, c)
		}
	}
	a.snap.Store(&next)
}

func (a *atomicCells) count() int { return len(a.snapshot()) }

func (a *atomicCells) clear() {
	a.lock.Lock()
	defer a.lock.Unlock()
	empty := []Cell{}
	a.snap.Store(&empty)
}
