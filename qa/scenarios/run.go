package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/robodelivery/core/dispatch"
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/model"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/core/world"
	"github.com/kilianp07/robodelivery/infra/metrics"
)

// Step is one event seen on the channel. Tick 0 is the tick the first
// orders are placed on. Order is only meaningful for kinds that carry an
// order number.
type Step struct {
	Tick  int
	Kind  events.Kind
	Order int
}

// Result is what a scenario run produced.
type Result struct {
	Timeline   []Step
	Decisions  map[logging.Decision]int
	Dispatcher *dispatch.Dispatcher
	Engine     *world.Engine
}

// Run drives the world and the dispatcher against each other over an
// in-memory pipe. Each tick the world applies the commands it received and
// reports, then the dispatcher answers.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	restaurants := make([]model.Point, 0, len(sc.World.Restaurants))
	for _, p := range sc.World.Restaurants {
		pt, err := p.ToModel()
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, pt)
	}
	engine, err := world.NewEngine(world.Config{
		Width:             sc.World.Width,
		Height:            sc.World.Height,
		MaxRobots:         sc.World.MaxRobots,
		BackpackCapacity:  sc.World.BackpackCapacity,
		LowBatteryPercent: sc.World.LowBatteryPercent,
		Restaurants:       restaurants,
		ManualOrders:      true,
	}, world.WithPrepTimer(world.FixedPrep(sc.World.PrepTicks)))
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("prom sink: %w", err)
	}
	store := logging.NewMemoryStore()
	epoch := time.Unix(0, 0).UTC()
	d, err := dispatch.New(dispatch.Config{
		MaxRobots:        sc.World.MaxRobots,
		BackpackCapacity: sc.World.BackpackCapacity,
		BatteryRange:     sc.World.BatteryRange,
		SingleDrop:       sc.SingleDrop,
	},
		dispatch.WithSink(sink),
		dispatch.WithLogStore(store),
		dispatch.WithClock(func() time.Time { return epoch }),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	worldEnd, dispatchEnd := transport.Pipe()
	defer func() {
		_ = worldEnd.Close()
		_ = dispatchEnd.Close()
	}()

	res := &Result{Decisions: make(map[logging.Decision]int), Dispatcher: d, Engine: engine}
	record := func(tick int, b events.Batch) {
		for _, ev := range b {
			res.Timeline = append(res.Timeline, Step{Tick: tick, Kind: ev.Kind, Order: ev.OrderNumber})
		}
	}

	for tick := 0; tick < sc.Ticks; tick++ {
		inbound := worldEnd.Poll()
		for _, o := range sc.Orders {
			if o.Tick != tick {
				continue
			}
			rest, err := o.Restaurant.ToModel()
			if err != nil {
				return nil, err
			}
			addr, err := o.Address.ToModel()
			if err != nil {
				return nil, err
			}
			inbound = append(inbound, engine.NewOrder(model.Food{Size: max(o.Size, 1)}, rest, addr))
		}
		tr := engine.Tick(inbound)
		record(tick, tr.Outbound)
		if len(tr.Outbound) > 0 {
			if err := worldEnd.Send(ctx, tr.Outbound); err != nil {
				return nil, fmt.Errorf("tick %d: world send: %w", tick, err)
			}
		}

		cmds := d.Handle(ctx, dispatchEnd.Poll())
		record(tick, cmds)
		if len(cmds) > 0 {
			if err := dispatchEnd.Send(ctx, cmds); err != nil {
				return nil, fmt.Errorf("tick %d: dispatcher send: %w", tick, err)
			}
		}
	}

	recs, err := store.Query(ctx, logging.LogQuery{})
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		res.Decisions[r.Decision]++
	}
	return res, nil
}

// Check compares a run against the expectations and returns every mismatch.
func Check(sc *Scenario, res *Result) []error {
	var errs []error
	exp := sc.Expected

	next := 0
	for _, s := range res.Timeline {
		if next < len(exp.Sequence) && string(s.Kind) == exp.Sequence[next] {
			next++
		}
	}
	if next < len(exp.Sequence) {
		errs = append(errs, fmt.Errorf("sequence stopped matching at %q (step %d)", exp.Sequence[next], next))
	}

	for kind, limit := range exp.ByTick {
		tick, ok := res.first(events.Kind(kind))
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%s never happened, wanted by tick %d", kind, limit))
		case tick > limit:
			errs = append(errs, fmt.Errorf("%s first happened at tick %d, wanted by tick %d", kind, tick, limit))
		}
	}

	for kind, want := range exp.AtTick {
		tick, ok := res.first(events.Kind(kind))
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%s never happened, wanted at tick %d", kind, want))
		case tick != want:
			errs = append(errs, fmt.Errorf("%s first happened at tick %d, wanted at tick %d", kind, tick, want))
		}
	}

	for kind, want := range exp.Counts {
		if got := res.count(events.Kind(kind)); got != want {
			errs = append(errs, fmt.Errorf("%s happened %d times, want %d", kind, got, want))
		}
	}

	for dec, want := range exp.Decisions {
		if got := res.Decisions[logging.Decision(dec)]; got != want {
			errs = append(errs, fmt.Errorf("%d %s decisions, want %d", got, dec, want))
		}
	}

	for id, want := range exp.Orders {
		got := "unknown"
		if res.Dispatcher.Finished(id) {
			got = "finished"
		} else if o, ok := res.Dispatcher.Order(id); ok {
			got = string(o.State())
		}
		if got != want {
			errs = append(errs, fmt.Errorf("order %d is %s, want %s", id, got, want))
		}
	}

	for id, want := range exp.Robots {
		got := "unknown"
		if r, ok := res.Dispatcher.Robot(id); ok {
			got = string(r.State())
		}
		if got != want {
			errs = append(errs, fmt.Errorf("robot %d is %s, want %s", id, got, want))
		}
	}
	return errs
}

func (r *Result) first(kind events.Kind) (int, bool) {
	for _, s := range r.Timeline {
		if s.Kind == kind {
			return s.Tick, true
		}
	}
	return 0, false
}

func (r *Result) count(kind events.Kind) int {
	n := 0
	for _, s := range r.Timeline {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
