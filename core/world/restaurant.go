package world

import (
	"sort"

	"github.com/kilianp07/robodelivery/core/model"
)

type preparation struct {
	food      model.Food
	remaining int
}

// Restaurant prepares food for the orders started at its position.
type Restaurant struct {
	Position model.Point
	pending  map[int]*preparation
}

// NewRestaurant returns an idle restaurant at p.
func NewRestaurant(p model.Point) *Restaurant {
	return &Restaurant{Position: p, pending: make(map[int]*preparation)}
}

// Start begins preparing food for order. Restarting a known order is ignored.
func (r *Restaurant) Start(order int, food model.Food, ticks int) bool {
	if _, ok := r.pending[order]; ok {
		return false
	}
	if ticks < 1 {
		ticks = 1
	}
	r.pending[order] = &preparation{food: food, remaining: ticks}
	return true
}

// countdown decrements every running preparation and returns the orders that
// became ready on this tick, ascending. Ready entries stay until taken.
func (r *Restaurant) countdown() []int {
	var ready []int
	for id, p := range r.pending {
		if p.remaining == 0 {
			continue
		}
		p.remaining--
		if p.remaining == 0 {
			ready = append(ready, id)
		}
	}
	sort.Ints(ready)
	return ready
}

// Ready reports whether the food of order is waiting for pickup.
func (r *Restaurant) Ready(order int) bool {
	p, ok := r.pending[order]
	return ok && p.remaining == 0
}

// Remaining returns the ticks left for order and whether it is known.
func (r *Restaurant) Remaining(order int) (int, bool) {
	p, ok := r.pending[order]
	if !ok {
		return 0, false
	}
	return p.remaining, true
}

// Food returns the food prepared for order.
func (r *Restaurant) Food(order int) (model.Food, bool) {
	p, ok := r.pending[order]
	if !ok {
		return model.Food{}, false
	}
	return p.food, true
}

// take removes a ready entry once its food has been picked up.
func (r *Restaurant) take(order int) bool {
	if !r.Ready(order) {
		return false
	}
	delete(r.pending, order)
	return true
}

// Pending returns the number of orders in preparation or waiting for pickup.
func (r *Restaurant) Pending() int { return len(r.pending) }
