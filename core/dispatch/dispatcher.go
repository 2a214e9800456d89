// Package dispatch is the decision authority of the fleet. It mirrors every
// robot and order in a state machine driven by the reports of the world
// runtime, matches queued orders to robots and answers each inbound batch
// with the commands the world must apply on its next tick.
package dispatch

import (
	"context"
	"time"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/fleetstatus"
	"github.com/kilianp07/robodelivery/core/fsm"
	"github.com/kilianp07/robodelivery/core/ids"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/order"
	"github.com/kilianp07/robodelivery/core/robot"
	"github.com/kilianp07/robodelivery/internal/eventbus"
)

// Dispatcher owns the robot and order machines. It is driven by Handle from a
// single tick loop and is not safe for concurrent use.
type Dispatcher struct {
	cfg    Config
	log    logger.Logger
	sink   metrics.MetricsSink
	bus    *eventbus.TypedBus[Notice]
	store  logging.LogStore
	status fleetstatus.Store
	now    func() time.Time

	tick     int
	robotIDs *ids.Allocator
	pool     *ids.Pool
	robots   map[int]*robot.Robot
	orders   map[int]*order.Order
	created  map[int]int
	finished map[int]bool
	queue    []int
	// waiting holds the last decision published for each queued order.
	waiting  map[int]logging.Decision
	rejected int

	ctx context.Context
	out events.Batch
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(d *Dispatcher) { d.log = logger.OrNop(l) } }

// WithSink sets the metrics sink.
func WithSink(s metrics.MetricsSink) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sink = s
		}
	}
}

// WithBus publishes a Notice for every decision on bus.
func WithBus(bus *eventbus.TypedBus[Notice]) Option { return func(d *Dispatcher) { d.bus = bus } }

// WithLogStore appends every decision to store.
func WithLogStore(store logging.LogStore) Option { return func(d *Dispatcher) { d.store = store } }

// WithStatusStore mirrors robot state into store after every batch.
func WithStatusStore(store fleetstatus.Store) Option {
	return func(d *Dispatcher) { d.status = store }
}

// WithClock overrides the time source used to stamp decisions.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// New returns a dispatcher with an empty fleet.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:      cfg,
		log:      logger.Nop{},
		sink:     metrics.NopSink{},
		now:      time.Now,
		robotIDs: ids.NewAllocator(cfg.FirstRobotID),
		pool:     ids.NewPool(),
		robots:   make(map[int]*robot.Robot),
		orders:   make(map[int]*order.Order),
		created:  make(map[int]int),
		finished: make(map[int]bool),
		waiting:  make(map[int]logging.Decision),
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Handle applies every inbound event in arrival order, runs a dispatch pass
// and returns the commands for the world runtime.
func (d *Dispatcher) Handle(ctx context.Context, inbound events.Batch) events.Batch {
	d.tick++
	d.ctx = ctx
	d.out = events.Batch{}
	for _, ev := range inbound {
		d.apply(ev)
	}
	d.dispatchPass()
	d.publishStatus()
	out := d.out
	d.out = nil
	return out
}

// Tick returns the number of batches handled so far.
func (d *Dispatcher) Tick() int { return d.tick }

// Robot returns the dispatcher's view of robot id.
func (d *Dispatcher) Robot(id int) (*robot.Robot, bool) {
	r, ok := d.robots[id]
	return r, ok
}

// Order returns an active order. Finished orders are no longer returned.
func (d *Dispatcher) Order(id int) (*order.Order, bool) {
	o, ok := d.orders[id]
	return o, ok
}

// Finished reports whether order id reached its terminal state.
func (d *Dispatcher) Finished(id int) bool { return d.finished[id] }

// Queue returns the ids of orders waiting for a robot, in FIFO order.
func (d *Dispatcher) Queue() []int {
	out := make([]int, len(d.queue))
	copy(out, d.queue)
	return out
}

// Recharged returns the ids of robots waiting in the recharged pool.
func (d *Dispatcher) Recharged() []int { return d.pool.IDs() }

// Rejected returns the number of events refused by any state machine since
// the dispatcher was created, including machines of finished orders.
func (d *Dispatcher) Rejected() int { return d.rejected }

func (d *Dispatcher) apply(ev events.Event) {
	switch ev.Kind {
	case events.KindNewOrder:
		d.onNewOrder(ev)
	case events.KindArrivedAtRestaurant:
		d.onArrivedAtRestaurant(ev)
	case events.KindFoodReady:
		d.onFoodReady(ev)
	case events.KindFoodPickedUp:
		d.onFoodPickedUp(ev)
	case events.KindFoodDelivered:
		d.onFoodDelivered(ev)
	case events.KindBackpackEmptied:
		d.onBackpackEmptied(ev)
	case events.KindLowBattery:
		d.onLowBattery(ev)
	case events.KindArrivedAtBase:
		d.onArrivedAtBase(ev)
	case events.KindBatteryDepleted:
		d.onBatteryDepleted(ev)
	default:
		d.ignore(ev, "not a world report")
	}
}

func (d *Dispatcher) ignore(ev events.Event, why string) {
	ignoredEvents.WithLabelValues(string(ev.Kind)).Inc()
	d.log.Warnf("ignoring %s: %s", ev, why)
}

func (d *Dispatcher) robotFor(ev events.Event) (*robot.Robot, bool) {
	r, ok := d.robots[ev.RobotNumber]
	if !ok {
		d.ignore(ev, "unknown robot")
	}
	return r, ok
}

func (d *Dispatcher) orderFor(ev events.Event) (*order.Order, bool) {
	o, ok := d.orders[ev.OrderNumber]
	if !ok {
		if d.finished[ev.OrderNumber] {
			d.log.Debugf("order %d already finished, dropping %s", ev.OrderNumber, ev.Kind)
			return nil, false
		}
		d.ignore(ev, "unknown order")
	}
	return o, ok
}

// fire applies kind to m and reports the outcome to metrics and logs.
func (d *Dispatcher) fire(m *fsm.Machine, id int, kind events.Kind) fsm.Result {
	res := m.Fire(kind)
	name := m.Table().Name()
	if rec, ok := d.sink.(metrics.TransitionRecorder); ok {
		if err := rec.RecordTransition(metrics.TransitionEvent{
			Machine:    name,
			Event:      string(kind),
			From:       string(res.From),
			To:         string(res.To),
			Transition: res.Transition,
			Accepted:   res.OK(),
			Time:       d.now(),
		}); err != nil {
			d.log.Errorf("metrics error: %v", err)
		}
	}
	if !res.OK() {
		d.rejected++
		rejectedTransitions.WithLabelValues(name, string(kind)).Inc()
		d.log.Debugw("transition rejected", map[string]any{
			"machine": name,
			"id":      id,
			"event":   string(kind),
			"state":   string(res.From),
		})
	}
	return res
}

// issue appends a command to the outbound batch.
func (d *Dispatcher) issue(ev events.Event) {
	commandsIssued.WithLabelValues(string(ev.Kind)).Inc()
	d.out = append(d.out, ev)
}

// command fires kind at r and, when legal, issues ev. Commands are applied to
// the robot machine at issue time so later decisions in the same batch see
// the new state.
func (d *Dispatcher) command(r *robot.Robot, ev events.Event) bool {
	res := d.fire(r.Machine(), r.ID, ev.Kind)
	if !res.OK() {
		d.log.Warnf("robot %d: %v", r.ID, res.Err)
		return false
	}
	d.issue(ev)
	d.enter(r, res)
	return true
}

func (d *Dispatcher) notify(n Notice) {
	n.Tick = d.tick
	n.Time = d.now()
	if d.bus != nil {
		if missed := d.bus.Publish(n); missed > 0 {
			d.log.Debugf("%d notice subscribers missed %s for order %d", missed, n.Decision, n.Order)
		}
	}
	if d.store != nil {
		if err := d.store.Append(d.ctx, n.Record()); err != nil {
			d.log.Errorf("decision log: %v", err)
		}
	}
	if d.status != nil && n.Robot != logging.NoID {
		d.status.RecordDecision(n.Robot, fleetstatus.LastDecision{
			Decision:  string(n.Decision),
			Order:     n.Order,
			Tick:      n.Tick,
			Timestamp: n.Time,
		})
	}
}

func (d *Dispatcher) publishStatus() {
	byState := make(map[string]int)
	for _, r := range d.robots {
		byState[string(r.State())]++
		if d.status != nil {
			d.status.Set(fleetstatus.Status{
				RobotID:    r.ID,
				State:      string(r.State()),
				Position:   r.Position,
				Reserved:   r.Reserved,
				Capacity:   r.Capacity,
				LowBattery: r.LowBattery,
				Orders:     r.Orders(),
			})
		}
	}
	if rec, ok := d.sink.(metrics.FleetRecorder); ok {
		if err := rec.RecordFleet(metrics.FleetEvent{
			ByState:      byState,
			ActiveOrders: len(d.orders),
			QueuedOrders: len(d.queue),
			Time:         d.now(),
		}); err != nil {
			d.log.Errorf("metrics error: %v", err)
		}
	}
}
