// Package robot holds the dispatcher side view of a delivery robot: its
// lifecycle machine plus the bookkeeping the assignment heuristic needs. The
// view is driven only by events; the world runtime owns the real position and
// battery.
package robot

import (
	"sort"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/fsm"
	"github.com/kilianp07/robodelivery/core/model"
)

// Lifecycle states.
const (
	BaseIdle              fsm.State = "base_idle"
	FieldIdle             fsm.State = "field_idle"
	TravelingToRestaurant fsm.State = "traveling_to_restaurant"
	RestaurantIdle        fsm.State = "restaurant_idle"
	TravelingToClient     fsm.State = "traveling_to_client"
	ClientIdle            fsm.State = "client_idle"
	TravelingToBase       fsm.State = "traveling_to_base"
	DeadOrRecharging      fsm.State = "dead_or_recharging"
)

// Table resolves commands and reports against the robot lifecycle.
var Table = fsm.MustTable("robot", BaseIdle,
	fsm.Transition{Name: "spawn", From: BaseIdle, On: events.KindSpawnRobot, To: FieldIdle},
	fsm.Transition{Name: "recall", From: FieldIdle, On: events.KindReturnToBase, To: TravelingToBase},
	fsm.Transition{Name: "docked", From: TravelingToBase, On: events.KindArrivedAtBase, To: BaseIdle},
	fsm.Transition{Name: "pick_first", From: FieldIdle, On: events.KindPickFood, To: TravelingToRestaurant},
	fsm.Transition{Name: "pick_additional", From: RestaurantIdle, On: events.KindPickFood, To: TravelingToRestaurant},
	fsm.Transition{Name: "arrive_restaurant", From: TravelingToRestaurant, On: events.KindArrivedAtRestaurant, To: RestaurantIdle},
	fsm.Transition{Name: "deliver_first", From: RestaurantIdle, On: events.KindDeliverFood, To: TravelingToClient},
	fsm.Transition{Name: "deliver_next", From: ClientIdle, On: events.KindDeliverFood, To: TravelingToClient},
	fsm.Transition{Name: "drop_off", From: TravelingToClient, On: events.KindFoodDelivered, To: ClientIdle},
	fsm.Transition{Name: "emptied", From: ClientIdle, On: events.KindBackpackEmptied, To: FieldIdle},
	fsm.Transition{Name: "deplete", From: TravelingToRestaurant, On: events.KindBatteryDepleted, To: DeadOrRecharging},
	fsm.Transition{Name: "deplete", From: TravelingToClient, On: events.KindBatteryDepleted, To: DeadOrRecharging},
	fsm.Transition{Name: "deplete", From: TravelingToBase, On: events.KindBatteryDepleted, To: DeadOrRecharging},
	// A robot whose last unit took it to its target reports the arrival
	// first, so the depletion finds it idle.
	fsm.Transition{Name: "deplete_idle", From: RestaurantIdle, On: events.KindBatteryDepleted, To: DeadOrRecharging},
	fsm.Transition{Name: "deplete_idle", From: ClientIdle, On: events.KindBatteryDepleted, To: DeadOrRecharging},
	fsm.Transition{Name: "deplete_idle", From: FieldIdle, On: events.KindBatteryDepleted, To: DeadOrRecharging},
).WithTerminal(DeadOrRecharging)

// Robot is the dispatcher's mirror of one robot.
type Robot struct {
	ID           int
	BatteryRange int
	Capacity     int
	Position     model.Point
	Reserved     int
	LowBattery   bool

	machine *fsm.Machine
	orders  map[int]int
}

// New returns a robot in base_idle at the origin.
func New(id, batteryRange, capacity int) *Robot {
	return &Robot{
		ID:           id,
		BatteryRange: batteryRange,
		Capacity:     capacity,
		machine:      Table.New(),
		orders:       make(map[int]int),
	}
}

// State returns the current lifecycle state.
func (r *Robot) State() fsm.State { return r.machine.State() }

// Machine exposes the underlying machine for observers and diagnostics.
func (r *Robot) Machine() *fsm.Machine { return r.machine }

// Fire applies kind to the lifecycle machine.
func (r *Robot) Fire(kind events.Kind) fsm.Result { return r.machine.Fire(kind) }

// Alive reports whether the robot can still move.
func (r *Robot) Alive() bool { return r.State() != DeadOrRecharging }

// Traveling reports whether the robot is in the middle of a leg.
func (r *Robot) Traveling() bool {
	switch r.State() {
	case TravelingToRestaurant, TravelingToClient, TravelingToBase:
		return true
	}
	return false
}

// Fits is the admission check: it reports whether size more units still fit
// in the backpack given what is already reserved.
func (r *Robot) Fits(size int) bool { return r.Reserved+size <= r.Capacity }

// Reserve books size units of backpack for order.
func (r *Robot) Reserve(order, size int) {
	if _, ok := r.orders[order]; ok {
		return
	}
	r.orders[order] = size
	r.Reserved += size
}

// Release frees the space booked for order. Unknown orders are ignored.
func (r *Robot) Release(order int) {
	size, ok := r.orders[order]
	if !ok {
		return
	}
	delete(r.orders, order)
	r.Reserved -= size
}

// Carries reports whether order is booked on this robot.
func (r *Robot) Carries(order int) bool {
	_, ok := r.orders[order]
	return ok
}

// Orders returns the booked order ids in ascending order.
func (r *Robot) Orders() []int {
	out := make([]int, 0, len(r.orders))
	for id := range r.orders {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// ResetAtBase is the base_idle entry action: battery bookkeeping and position
// go back to their defaults and every booking is dropped.
func (r *Robot) ResetAtBase() {
	r.Position = model.Origin
	r.LowBattery = false
	r.Reserved = 0
	r.orders = make(map[int]int)
}

// Respawn prepares a recharged robot for a new spawn.
func (r *Robot) Respawn(batteryRange int) {
	r.BatteryRange = batteryRange
	r.ResetAtBase()
}
