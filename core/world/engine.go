// Package world simulates the physical side of the delivery fleet: robots
// moving on a grid and draining their battery, restaurants preparing food and
// customers placing orders. Engine.Tick turns one inbound command batch into
// the reports the dispatcher reacts to.
package world

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/ids"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/model"
)

// TickResult is what one tick produced.
type TickResult struct {
	Tick int
	// Outbound is sent to the dispatcher.
	Outbound events.Batch
	// Internal holds events kept local to the world, such as revisits of a
	// robot waiting at a restaurant. They are journaled but never sent.
	Internal events.Batch
	// Diagnostics lists commands that were refused or ignored.
	Diagnostics []error
}

// inflight is the world's copy of an order that has not been delivered yet.
type inflight struct {
	food       model.Food
	restaurant model.Point
	address    model.Point
}

// Engine owns the world model. It is driven from a single tick loop.
type Engine struct {
	cfg         Config
	log         logger.Logger
	rng         *rand.Rand
	prep        PrepTimer
	orderIDs    *ids.Allocator
	generator   *Generator
	tick        int
	robots      map[int]*Robot
	restaurants map[model.Point]*Restaurant
	orders      map[int]inflight
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option { return func(e *Engine) { e.log = logger.OrNop(l) } }

// WithPrepTimer overrides the preparation time source.
func WithPrepTimer(p PrepTimer) Option { return func(e *Engine) { e.prep = p } }

// WithRand overrides the random source used for layout, preparation and orders.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

// NewEngine builds the world: restaurants come from cfg.Restaurants or are
// placed at random.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		log:         logger.Nop{},
		orderIDs:    ids.NewAllocator(0),
		robots:      make(map[int]*Robot),
		restaurants: make(map[model.Point]*Restaurant),
		orders:      make(map[int]inflight),
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	if e.prep == nil {
		e.prep = RandomPrep{Min: cfg.PrepMinTicks, Max: cfg.PrepMaxTicks, Rand: e.rng}
	}
	positions := cfg.Restaurants
	if len(positions) == 0 {
		var err error
		positions, err = PlaceRestaurants(e.rng, cfg.RestaurantCount, cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range positions {
		e.restaurants[p] = NewRestaurant(p)
	}
	if !cfg.ManualOrders {
		e.generator = NewGenerator(cfg, e.rng, e.orderIDs)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// CurrentTick returns the number of ticks run so far.
func (e *Engine) CurrentTick() int { return e.tick }

// Restaurants returns the restaurant positions, sorted.
func (e *Engine) Restaurants() []model.Point {
	out := make([]model.Point, 0, len(e.restaurants))
	for p := range e.restaurants {
		out = append(out, p)
	}
	sortPoints(out)
	return out
}

// Restaurant returns the restaurant at p.
func (e *Engine) Restaurant(p model.Point) (*Restaurant, bool) {
	r, ok := e.restaurants[p]
	return r, ok
}

// Robot returns a snapshot of robot id.
func (e *Engine) Robot(id int) (Robot, bool) {
	r, ok := e.robots[id]
	if !ok {
		return Robot{}, false
	}
	return r.Snapshot(), true
}

// Robots returns snapshots of every known robot, ascending by id.
func (e *Engine) Robots() []Robot {
	out := make([]Robot, 0, len(e.robots))
	for _, id := range e.robotIDs() {
		out = append(out, e.robots[id].Snapshot())
	}
	return out
}

// NewOrder creates a customer order with a world allocated id. The event is
// meant to be fed back through Tick so that it is forwarded like a generated
// order.
func (e *Engine) NewOrder(food model.Food, restaurant, address model.Point) events.Event {
	return events.NewOrder(e.orderIDs.Next(), food, address, restaurant)
}

// Tick runs one simulation step.
func (e *Engine) Tick(inbound events.Batch) TickResult {
	e.tick++
	res := TickResult{Tick: e.tick}

	for _, ev := range inbound {
		e.apply(ev, &res)
	}
	e.move(&res)
	e.countdown(&res)
	e.revisit(&res)
	if e.generator != nil {
		if ev, ok := e.generator.Maybe(e.Restaurants()); ok {
			e.accept(ev)
			res.Outbound = append(res.Outbound, ev)
		}
	}
	return res
}

func (e *Engine) refuse(res *TickResult, err error) {
	e.log.Warnf("tick %d: %v", e.tick, err)
	res.Diagnostics = append(res.Diagnostics, err)
}

func (e *Engine) accept(ev events.Event) {
	e.orderIDs.Observe(ev.OrderNumber)
	e.orders[ev.OrderNumber] = inflight{food: ev.Food, restaurant: ev.Restaurant, address: ev.Address}
}

func (e *Engine) apply(ev events.Event, res *TickResult) {
	switch ev.Kind {
	case events.KindNewOrder:
		e.accept(ev)
		res.Outbound = append(res.Outbound, ev)
	case events.KindSpawnRobot:
		e.spawn(ev, res)
	case events.KindReturnToBase:
		r, err := e.activeRobot(ev)
		if err != nil {
			e.refuse(res, err)
			return
		}
		r.setTarget(model.Origin, Returning)
	case events.KindPickFood:
		r, err := e.activeRobot(ev)
		if err != nil {
			e.refuse(res, err)
			return
		}
		r.book(ev.OrderNumber, ev.Food, ev.Restaurant)
		r.setTarget(ev.Restaurant, PickingUp)
	case events.KindDeliverFood:
		e.deliver(ev, res)
	case events.KindFoodStart:
		rest, ok := e.restaurants[ev.Restaurant]
		if !ok {
			e.refuse(res, fmt.Errorf("food_start for order %d: no restaurant at %s", ev.OrderNumber, ev.Restaurant))
			return
		}
		rest.Start(ev.OrderNumber, ev.Food, e.prep.Ticks())
	default:
		e.refuse(res, fmt.Errorf("ignoring %s received by the world", ev.Kind))
	}
}

func (e *Engine) activeRobot(ev events.Event) (*Robot, error) {
	r, ok := e.robots[ev.RobotNumber]
	if !ok || r.Status != Active {
		return nil, fmt.Errorf("%s: robot %d is not active", ev.Kind, ev.RobotNumber)
	}
	return r, nil
}

func (e *Engine) liveFleet() int {
	n := 0
	for _, r := range e.robots {
		if r.Status != Depleted {
			n++
		}
	}
	return n
}

func (e *Engine) spawn(ev events.Event, res *TickResult) {
	if ev.BatteryRange <= 0 {
		e.refuse(res, fmt.Errorf("spawn_robot %d: battery range must be positive", ev.RobotNumber))
		return
	}
	r, ok := e.robots[ev.RobotNumber]
	switch {
	case ok && r.Status != Docked:
		e.refuse(res, fmt.Errorf("spawn_robot %d: robot is %s", ev.RobotNumber, r.Status))
		return
	case !ok && e.liveFleet() >= e.cfg.MaxRobots:
		e.refuse(res, fmt.Errorf("spawn_robot %d: fleet already at %d robots", ev.RobotNumber, e.cfg.MaxRobots))
		return
	case !ok:
		r = newRobot(ev.RobotNumber)
		e.robots[r.ID] = r
	}
	r.activate(ev.BatteryRange, e.cfg.BackpackCapacity)
}

func (e *Engine) deliver(ev events.Event, res *TickResult) {
	r, err := e.activeRobot(ev)
	if err != nil {
		e.refuse(res, err)
		return
	}
	if _, ok := e.restaurants[r.Position]; ok {
		e.collect(r, res)
	}
	if !r.Carries(ev.OrderNumber) {
		e.refuse(res, fmt.Errorf("deliver_food: robot %d does not carry order %d", r.ID, ev.OrderNumber))
		return
	}
	r.Delivering = ev.OrderNumber
	r.setTarget(ev.Address, Delivering)
}

// collect loads every ready order booked on r at the restaurant it stands on.
func (e *Engine) collect(r *Robot, res *TickResult) {
	rest, ok := e.restaurants[r.Position]
	if !ok {
		return
	}
	for _, id := range r.Booked(rest.Position) {
		if !rest.Ready(id) {
			continue
		}
		if err := r.load(id); err != nil {
			e.refuse(res, err)
			continue
		}
		food, _ := rest.Food(id)
		rest.take(id)
		res.Outbound = append(res.Outbound, events.FoodPickedUp(id, rest.Position, food))
	}
}

func (e *Engine) move(res *TickResult) {
	for _, id := range e.robotIDs() {
		r := e.robots[id]
		if r.Status != Active || !r.HasTarget {
			continue
		}
		out := r.step(e.cfg.LowBatteryPercent)
		if out.low {
			res.Outbound = append(res.Outbound, events.LowBattery(r.ID))
		}
		if r.AtTarget() {
			e.arrive(r, res)
		}
		if r.exhaust() {
			res.Outbound = append(res.Outbound, events.BatteryDepleted(r.ID))
			e.log.Warnf("robot %d depleted at %s", r.ID, r.Position)
		}
	}
}

func (e *Engine) arrive(r *Robot, res *TickResult) {
	switch r.Objective {
	case PickingUp:
		res.Outbound = append(res.Outbound, events.ArrivedAtRestaurant(r.ID, r.Position, false))
		r.clearTarget()
		r.Objective = Waiting
		e.collect(r, res)
	case Delivering:
		order := r.Delivering
		if _, ok := r.unload(order); !ok {
			e.refuse(res, fmt.Errorf("robot %d reached %s without order %d", r.ID, r.Position, order))
			r.clearTarget()
			return
		}
		delete(e.orders, order)
		r.clearTarget()
		res.Outbound = append(res.Outbound, events.FoodDelivered(order, r.Position))
		if r.BackpackLoad == 0 {
			res.Outbound = append(res.Outbound, events.BackpackEmptied(r.ID))
		}
	case Returning:
		r.recharge()
		res.Outbound = append(res.Outbound, events.ArrivedAtBase(r.ID))
	default:
		r.clearTarget()
	}
}

func (e *Engine) countdown(res *TickResult) {
	for _, p := range e.Restaurants() {
		rest := e.restaurants[p]
		for _, id := range rest.countdown() {
			food, _ := rest.Food(id)
			res.Outbound = append(res.Outbound, events.FoodReady(id, p, food))
		}
	}
}

// revisit lets robots waiting at a restaurant collect food that became ready.
func (e *Engine) revisit(res *TickResult) {
	for _, id := range e.robotIDs() {
		r := e.robots[id]
		if r.Status != Active || r.Objective != Waiting {
			continue
		}
		if len(r.Booked(r.Position)) == 0 {
			continue
		}
		res.Internal = append(res.Internal, events.ArrivedAtRestaurant(r.ID, r.Position, true))
		e.collect(r, res)
	}
}

func (e *Engine) robotIDs() []int {
	out := make([]int, 0, len(e.robots))
	for id := range e.robots {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func sortPoints(ps []model.Point) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i][0] != ps[j][0] {
			return ps[i][0] < ps[j][0]
		}
		return ps[i][1] < ps[j][1]
	})
}
