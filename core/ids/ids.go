// Package ids hands out identifiers for robots and orders. An Allocator
// belongs to exactly one owner (the dispatcher for robots, the world runtime
// for orders); a Pool keeps released robot ids for reuse.
package ids

import "sort"

// Allocator returns increasing identifiers starting at a fixed base.
type Allocator struct {
	next int
}

// NewAllocator returns an allocator whose first id is start.
func NewAllocator(start int) *Allocator { return &Allocator{next: start} }

// Next returns a fresh id.
func (a *Allocator) Next() int {
	id := a.next
	a.next++
	return id
}

// Peek returns the id Next would return without consuming it.
func (a *Allocator) Peek() int { return a.next }

// Observe makes sure a later Next never returns id. It is used when ids were
// assigned by a peer.
func (a *Allocator) Observe(id int) {
	if id >= a.next {
		a.next = id + 1
	}
}

// Pool is a free list of reusable ids. Take always returns the lowest id so
// reuse is deterministic.
type Pool struct {
	free map[int]struct{}
}

// NewPool returns an empty pool.
func NewPool() *Pool { return &Pool{free: make(map[int]struct{})} }

// Put releases id for reuse. Releasing the same id twice is a no-op.
func (p *Pool) Put(id int) { p.free[id] = struct{}{} }

// Take removes and returns the lowest free id.
func (p *Pool) Take() (int, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	min := 0
	first := true
	for id := range p.free {
		if first || id < min {
			min = id
			first = false
		}
	}
	delete(p.free, min)
	return min, true
}

// Remove drops id from the pool, reporting whether it was present.
func (p *Pool) Remove(id int) bool {
	_, ok := p.free[id]
	delete(p.free, id)
	return ok
}

// Contains reports whether id is waiting for reuse.
func (p *Pool) Contains(id int) bool {
	_, ok := p.free[id]
	return ok
}

// Len returns the number of free ids.
func (p *Pool) Len() int { return len(p.free) }

// IDs returns the free ids in ascending order.
func (p *Pool) IDs() []int {
	out := make([]int, 0, len(p.free))
	for id := range p.free {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
