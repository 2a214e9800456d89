// Package order holds the dispatcher side record of a food order and its
// strictly linear lifecycle.
package order

import (
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/fsm"
	"github.com/kilianp07/robodelivery/core/model"
)

// Lifecycle states.
const (
	Initial          fsm.State = "initial"
	AwaitingFood     fsm.State = "awaiting_food"
	AwaitingPickup   fsm.State = "awaiting_pickup"
	AwaitingDelivery fsm.State = "awaiting_delivery"
	Finished         fsm.State = "finished"
)

// Table is the order lifecycle. There are no skips and no back transitions.
var Table = fsm.MustTable("order", Initial,
	fsm.Transition{Name: "start", From: Initial, On: events.KindFoodStart, To: AwaitingFood},
	fsm.Transition{Name: "ready", From: AwaitingFood, On: events.KindFoodReady, To: AwaitingPickup},
	fsm.Transition{Name: "picked_up", From: AwaitingPickup, On: events.KindFoodPickedUp, To: AwaitingDelivery},
	fsm.Transition{Name: "delivered", From: AwaitingDelivery, On: events.KindFoodDelivered, To: Finished},
).WithTerminal(Finished)

// Order is one food order known to the dispatcher.
type Order struct {
	ID         int
	Food       model.Food
	Restaurant model.Point
	Address    model.Point

	// Robot is meaningful only when Assigned is set.
	Robot         int
	Assigned      bool
	DeliverIssued bool

	machine *fsm.Machine
}

// New returns an order in the initial state.
func New(id int, food model.Food, restaurant, address model.Point) *Order {
	return &Order{
		ID:         id,
		Food:       food,
		Restaurant: restaurant,
		Address:    address,
		machine:    Table.New(),
	}
}

// FromEvent builds an order from a new_order event.
func FromEvent(e events.Event) *Order {
	return New(e.OrderNumber, e.Food, e.Restaurant, e.Address)
}

// State returns the current lifecycle state.
func (o *Order) State() fsm.State { return o.machine.State() }

// Machine exposes the underlying machine.
func (o *Order) Machine() *fsm.Machine { return o.machine }

// Fire applies kind to the lifecycle machine.
func (o *Order) Fire(kind events.Kind) fsm.Result { return o.machine.Fire(kind) }

// Assign records the robot the order was given to.
func (o *Order) Assign(robot int) {
	o.Robot = robot
	o.Assigned = true
}

// Deliverable reports whether a deliver command may be issued for the order:
// its food is ready or already on board and no command went out yet.
func (o *Order) Deliverable() bool {
	if o.DeliverIssued {
		return false
	}
	s := o.State()
	return s == AwaitingPickup || s == AwaitingDelivery
}

// Done reports whether the order reached its terminal state.
func (o *Order) Done() bool { return o.State() == Finished }
