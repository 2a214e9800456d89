package dispatch

import (
	"fmt"
	"sort"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/order"
	"github.com/kilianp07/robodelivery/core/robot"
)

// dispatchPass walks the queue in FIFO order and assigns every order it can.
// Orders that cannot be served stay queued for the next pass.
func (d *Dispatcher) dispatchPass() {
	if len(d.queue) == 0 {
		return
	}
	remaining := d.queue[:0:0]
	for _, id := range d.queue {
		o, ok := d.orders[id]
		if !ok || o.Assigned {
			continue
		}
		if !d.assign(o) {
			remaining = append(remaining, id)
		}
	}
	d.queue = remaining
}

// candidates returns the robots that may take o: idle robots in the field and,
// unless single drop is configured, robots waiting at o's restaurant with room
// left. Low-battery robots are never candidates.
func (d *Dispatcher) candidates(o *order.Order) []*robot.Robot {
	var out []*robot.Robot
	for _, r := range d.robots {
		if r.LowBattery {
			continue
		}
		switch r.State() {
		case robot.FieldIdle:
			out = append(out, r)
		case robot.RestaurantIdle:
			if !d.cfg.SingleDrop && r.Position == o.Restaurant && r.Fits(o.Food.Size) {
				out = append(out, r)
			}
		}
	}
	return out
}

// nearest picks the candidate closest to p, lowest id first on ties.
func nearest(rs []*robot.Robot, o *order.Order) *robot.Robot {
	sort.Slice(rs, func(i, j int) bool {
		di, dj := rs[i].Position.Manhattan(o.Restaurant), rs[j].Position.Manhattan(o.Restaurant)
		if di != dj {
			return di < dj
		}
		return rs[i].ID < rs[j].ID
	})
	return rs[0]
}

func (d *Dispatcher) assign(o *order.Order) bool {
	if o.Food.Size > d.cfg.BackpackCapacity {
		reason := fmt.Sprintf("food size %d exceeds backpack capacity %d", o.Food.Size, d.cfg.BackpackCapacity)
		d.decide(o, Notice{Decision: logging.DecisionRejected, Order: o.ID, Robot: logging.NoID, Reason: reason})
		return false
	}
	cands := d.candidates(o)
	if len(cands) == 0 {
		r, err := d.spawn()
		if err != nil {
			d.decide(o, Notice{Decision: logging.DecisionDeferred, Order: o.ID, Robot: logging.NoID, Reason: err.Error()})
			return false
		}
		cands = []*robot.Robot{r}
	}
	r := nearest(cands, o)
	dist := r.Position.Manhattan(o.Restaurant)
	if !r.Fits(o.Food.Size) {
		reason := fmt.Sprintf("food size %d exceeds free capacity %d", o.Food.Size, r.Capacity-r.Reserved)
		d.decide(o, Notice{Decision: logging.DecisionRejected, Order: o.ID, Robot: r.ID, Distance: dist, Reason: reason})
		d.record(o, r, "rejected", dist)
		return false
	}
	if !d.command(r, events.PickFood(r.ID, o.Restaurant, o.ID, o.Food)) {
		return false
	}
	r.Reserve(o.ID, o.Food.Size)
	o.Assign(r.ID)
	delete(d.waiting, o.ID)
	d.notify(Notice{Decision: logging.DecisionAssigned, Order: o.ID, Robot: r.ID, Distance: dist})
	d.record(o, r, "assigned", dist)
	return true
}

// decide publishes a notice for a queued order only when the outcome differs
// from the previous pass.
func (d *Dispatcher) decide(o *order.Order, n Notice) {
	if d.waiting[o.ID] == n.Decision {
		return
	}
	d.waiting[o.ID] = n.Decision
	d.notify(n)
}

func (d *Dispatcher) record(o *order.Order, r *robot.Robot, outcome string, dist int) {
	if err := d.sink.RecordAssignment(metrics.AssignmentEvent{
		Order:    o.ID,
		Robot:    r.ID,
		Outcome:  outcome,
		Distance: dist,
		Time:     d.now(),
	}); err != nil {
		d.log.Errorf("metrics error: %v", err)
	}
}

// spawn brings one more robot into the field. Recharged robots are reused
// before a new id is allocated.
func (d *Dispatcher) spawn() (*robot.Robot, error) {
	var r *robot.Robot
	if id, ok := d.pool.Take(); ok {
		r = d.robots[id]
		r.Respawn(d.cfg.BatteryRange)
	} else {
		if live := d.liveFleet(); live >= d.cfg.MaxRobots {
			return nil, fmt.Errorf("fleet at %d robots", live)
		}
		r = robot.New(d.robotIDs.Next(), d.cfg.BatteryRange, d.cfg.BackpackCapacity)
		d.robots[r.ID] = r
	}
	if !d.command(r, events.SpawnRobot(r.ID, r.BatteryRange)) {
		return nil, fmt.Errorf("robot %d cannot spawn from %s", r.ID, r.State())
	}
	d.notify(Notice{Decision: logging.DecisionSpawned, Order: logging.NoID, Robot: r.ID})
	return r, nil
}

func (d *Dispatcher) liveFleet() int {
	n := 0
	for _, r := range d.robots {
		if r.Alive() {
			n++
		}
	}
	return n
}
