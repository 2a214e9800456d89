package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/robodelivery/core/model"
)

// ErrCapacityExceeded is returned when loading food would overflow a backpack.
var ErrCapacityExceeded = errors.New("backpack capacity exceeded")

// Objective is what a robot does when it reaches its target.
type Objective int

const (
	Idle Objective = iota
	PickingUp
	Waiting
	Delivering
	Returning
)

func (o Objective) String() string {
	switch o {
	case PickingUp:
		return "picking_up"
	case Waiting:
		return "waiting"
	case Delivering:
		return "delivering"
	case Returning:
		return "returning"
	}
	return "idle"
}

// Status is the physical condition of a robot.
type Status int

const (
	// Docked robots sit recharged at the base and may be spawned again.
	Docked Status = iota
	Active
	Depleted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Depleted:
		return "depleted"
	}
	return "docked"
}

// Cargo is an order booked on a robot.
type Cargo struct {
	Order      int
	Food       model.Food
	Restaurant model.Point
	PickedUp   bool
}

// Robot is the world side record of a delivery robot.
type Robot struct {
	ID               int
	Position         model.Point
	BatteryCapacity  int
	BatteryRemaining int
	BackpackCapacity int
	BackpackLoad     int
	Status           Status
	Objective        Objective
	Target           model.Point
	HasTarget        bool
	// Delivering is the order carried to Target when Objective is Delivering.
	Delivering int

	lowWarned bool
	cargo     map[int]*Cargo
}

func newRobot(id int) *Robot {
	return &Robot{ID: id, cargo: make(map[int]*Cargo)}
}

// activate (re)starts the robot at the base with a full battery.
func (r *Robot) activate(batteryRange, capacity int) {
	r.Position = model.Origin
	r.BatteryCapacity = batteryRange
	r.BatteryRemaining = batteryRange
	r.BackpackCapacity = capacity
	r.BackpackLoad = 0
	r.Status = Active
	r.Objective = Idle
	r.HasTarget = false
	r.lowWarned = false
	r.cargo = make(map[int]*Cargo)
}

func (r *Robot) setTarget(p model.Point, o Objective) {
	r.Target = p
	r.HasTarget = true
	r.Objective = o
}

func (r *Robot) clearTarget() {
	r.HasTarget = false
	r.Objective = Idle
}

// AtTarget reports whether the robot stands on its target.
func (r *Robot) AtTarget() bool { return r.HasTarget && r.Position == r.Target }

// book records an order the robot was sent to collect.
func (r *Robot) book(order int, food model.Food, restaurant model.Point) {
	if c, ok := r.cargo[order]; ok {
		c.Food = food
		c.Restaurant = restaurant
		return
	}
	r.cargo[order] = &Cargo{Order: order, Food: food, Restaurant: restaurant}
}

// load puts the food of a booked order in the backpack.
func (r *Robot) load(order int) error {
	c, ok := r.cargo[order]
	if !ok {
		return fmt.Errorf("robot %d: order %d not booked", r.ID, order)
	}
	if c.PickedUp {
		return nil
	}
	if r.BackpackLoad+c.Food.Size > r.BackpackCapacity {
		return fmt.Errorf("robot %d: order %d size %d with load %d/%d: %w",
			r.ID, order, c.Food.Size, r.BackpackLoad, r.BackpackCapacity, ErrCapacityExceeded)
	}
	c.PickedUp = true
	r.BackpackLoad += c.Food.Size
	return nil
}

// unload removes a carried order from the backpack.
func (r *Robot) unload(order int) (Cargo, bool) {
	c, ok := r.cargo[order]
	if !ok || !c.PickedUp {
		return Cargo{}, false
	}
	delete(r.cargo, order)
	r.BackpackLoad -= c.Food.Size
	return *c, true
}

// Carries reports whether the food of order is in the backpack.
func (r *Robot) Carries(order int) bool {
	c, ok := r.cargo[order]
	return ok && c.PickedUp
}

// Booked returns the ids of orders still to collect at restaurant, ascending.
func (r *Robot) Booked(restaurant model.Point) []int {
	var out []int
	for id, c := range r.cargo {
		if !c.PickedUp && c.Restaurant == restaurant {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// Cargo returns a copy of every booked order, ascending by id.
func (r *Robot) Cargo() []Cargo {
	out := make([]Cargo, 0, len(r.cargo))
	for _, c := range r.cargo {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

type stepOutcome struct {
	moved bool
	low   bool
}

// step advances one grid unit toward the target and drains one battery unit.
// The low battery warning fires once per crossing of the threshold and is
// re-armed by recharge. Depletion is left to exhaust so the engine can
// handle an arrival on the last unit first.
func (r *Robot) step(lowPercent int) stepOutcome {
	var out stepOutcome
	if r.Status != Active || !r.HasTarget || r.Position == r.Target || r.BatteryRemaining <= 0 {
		return out
	}
	r.Position = r.Position.StepToward(r.Target)
	r.BatteryRemaining--
	out.moved = true
	if !r.lowWarned && r.BatteryRemaining*100 <= lowPercent*r.BatteryCapacity {
		r.lowWarned = true
		out.low = true
	}
	return out
}

// exhaust marks an active robot with an empty battery as depleted and
// reports whether it did. A docked robot was recharged and never qualifies.
func (r *Robot) exhaust() bool {
	if r.Status != Active || r.BatteryRemaining > 0 {
		return false
	}
	r.BatteryRemaining = 0
	r.Status = Depleted
	r.clearTarget()
	return true
}

// recharge docks the robot at the base with a full battery.
func (r *Robot) recharge() {
	r.BatteryRemaining = r.BatteryCapacity
	r.lowWarned = false
	r.Status = Docked
	r.clearTarget()
}

// Snapshot returns a copy safe to hand out of the tick loop.
func (r *Robot) Snapshot() Robot {
	cp := *r
	cp.cargo = nil
	return cp
}
