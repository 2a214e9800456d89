package dispatch

import (
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/fsm"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/order"
	"github.com/kilianp07/robodelivery/core/robot"
)

func (d *Dispatcher) onNewOrder(ev events.Event) {
	if _, ok := d.orders[ev.OrderNumber]; ok || d.finished[ev.OrderNumber] {
		d.ignore(ev, "duplicate order")
		return
	}
	o := order.FromEvent(ev)
	d.orders[o.ID] = o
	d.created[o.ID] = d.tick
	d.issue(events.FoodStart(o.Restaurant, o.ID, o.Food))
	if res := d.fire(o.Machine(), o.ID, events.KindFoodStart); res.Entered(order.AwaitingFood) {
		d.queue = append(d.queue, o.ID)
	}
}

func (d *Dispatcher) onArrivedAtRestaurant(ev events.Event) {
	if ev.Revisit {
		return
	}
	r, ok := d.robotFor(ev)
	if !ok {
		return
	}
	if res := d.fire(r.Machine(), r.ID, ev.Kind); !res.OK() {
		return
	}
	r.Position = ev.Restaurant
	d.maybeDeliver(r)
}

func (d *Dispatcher) onFoodReady(ev events.Event) {
	o, ok := d.orderFor(ev)
	if !ok {
		return
	}
	if res := d.fire(o.Machine(), o.ID, ev.Kind); !res.OK() {
		return
	}
	d.deliverFor(o)
}

func (d *Dispatcher) onFoodPickedUp(ev events.Event) {
	o, ok := d.orderFor(ev)
	if !ok {
		return
	}
	if res := d.fire(o.Machine(), o.ID, ev.Kind); !res.OK() {
		return
	}
	d.deliverFor(o)
}

func (d *Dispatcher) deliverFor(o *order.Order) {
	if !o.Assigned {
		return
	}
	if r, ok := d.robots[o.Robot]; ok {
		d.maybeDeliver(r)
	}
}

func (d *Dispatcher) onFoodDelivered(ev events.Event) {
	o, ok := d.orderFor(ev)
	if !ok {
		return
	}
	if res := d.fire(o.Machine(), o.ID, ev.Kind); !res.OK() {
		return
	}
	delete(d.orders, o.ID)
	d.finished[o.ID] = true
	ticks := d.tick - d.created[o.ID]
	delete(d.created, o.ID)
	delete(d.waiting, o.ID)
	d.removeQueued(o.ID)

	r, ok := d.robots[o.Robot]
	if !o.Assigned || !ok {
		d.log.Warnf("order %d delivered without a known robot", o.ID)
		return
	}
	if res := d.fire(r.Machine(), r.ID, ev.Kind); res.OK() {
		r.Position = ev.Address
	}
	r.Release(o.ID)
	if rec, ok := d.sink.(metrics.DeliveryRecorder); ok {
		if err := rec.RecordDelivery(metrics.DeliveryEvent{Order: o.ID, Robot: r.ID, Ticks: ticks, Time: d.now()}); err != nil {
			d.log.Errorf("metrics error: %v", err)
		}
	}
	d.notify(Notice{Decision: logging.DecisionDelivered, Order: o.ID, Robot: r.ID})
	d.maybeDeliver(r)
}

func (d *Dispatcher) onBackpackEmptied(ev events.Event) {
	r, ok := d.robotFor(ev)
	if !ok {
		return
	}
	d.enter(r, d.fire(r.Machine(), r.ID, ev.Kind))
}

func (d *Dispatcher) onLowBattery(ev events.Event) {
	r, ok := d.robotFor(ev)
	if !ok {
		return
	}
	r.LowBattery = true
	if r.State() == robot.FieldIdle {
		d.recall(r)
	}
}

func (d *Dispatcher) onArrivedAtBase(ev events.Event) {
	r, ok := d.robotFor(ev)
	if !ok {
		return
	}
	d.enter(r, d.fire(r.Machine(), r.ID, ev.Kind))
}

func (d *Dispatcher) onBatteryDepleted(ev events.Event) {
	r, ok := d.robotFor(ev)
	if !ok {
		return
	}
	if res := d.fire(r.Machine(), r.ID, ev.Kind); !res.OK() {
		return
	}
	d.pool.Remove(r.ID)
	d.log.Warnf("robot %d depleted carrying %v", r.ID, r.Orders())
	for _, id := range r.Orders() {
		d.notify(Notice{Decision: logging.DecisionOrphaned, Order: id, Robot: r.ID, Reason: "battery depleted"})
	}
}

// enter runs the entry action of the state a transition just reached.
func (d *Dispatcher) enter(r *robot.Robot, res fsm.Result) {
	switch {
	case res.Entered(robot.BaseIdle):
		r.ResetAtBase()
		d.pool.Put(r.ID)
	case res.Entered(robot.FieldIdle):
		if r.LowBattery {
			d.recall(r)
		}
	}
}

func (d *Dispatcher) recall(r *robot.Robot) {
	if d.command(r, events.ReturnToBase(r.ID)) {
		d.notify(Notice{Decision: logging.DecisionRecalled, Order: logging.NoID, Robot: r.ID, Reason: "low battery"})
	}
}

// maybeDeliver issues deliver_food for the lowest deliverable order of r. At
// a restaurant the robot waits until none of its orders is still being
// prepared.
func (d *Dispatcher) maybeDeliver(r *robot.Robot) {
	switch r.State() {
	case robot.RestaurantIdle:
		for _, id := range r.Orders() {
			if o, ok := d.orders[id]; ok && o.State() == order.AwaitingFood {
				return
			}
		}
	case robot.ClientIdle:
	default:
		return
	}
	for _, id := range r.Orders() {
		o, ok := d.orders[id]
		if !ok || !o.Deliverable() {
			continue
		}
		if d.command(r, events.DeliverFood(r.ID, o.Address, o.ID, o.Food)) {
			o.DeliverIssued = true
			d.notify(Notice{Decision: logging.DecisionDelivering, Order: o.ID, Robot: r.ID})
		}
		return
	}
}

func (d *Dispatcher) removeQueued(id int) {
	for i, q := range d.queue {
		if q == id {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}
