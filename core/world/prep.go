package world

import "math/rand"

// PrepTimer draws the preparation time of a new order, in ticks.
type PrepTimer interface {
	Ticks() int
}

// RandomPrep draws uniformly from [Min, Max].
type RandomPrep struct {
	Min, Max int
	Rand     *rand.Rand
}

func (p RandomPrep) Ticks() int {
	if p.Max <= p.Min {
		return max(p.Min, 1)
	}
	return p.Min + p.Rand.Intn(p.Max-p.Min+1)
}

// FixedPrep always returns the same duration.
type FixedPrep int

func (p FixedPrep) Ticks() int { return max(int(p), 1) }
