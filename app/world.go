package app

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/model"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/core/world"
	"github.com/kilianp07/robodelivery/infra/journal"
)

// OrderRequest is a customer order submitted from outside the simulation.
type OrderRequest struct {
	Food       model.Food
	Restaurant model.Point
	Address    model.Point
}

// WorldService runs the world engine against a channel.
type WorldService struct {
	engine  *world.Engine
	ch      transport.Channel
	sink    metrics.MetricsSink
	journal *journal.Writer
	log     logger.Logger
	now     func() time.Time

	mu        sync.Mutex
	submitted []OrderRequest
	// pending holds reports the channel refused, resent on the next tick.
	pending events.Batch
	paused  bool
}

// peerState is implemented by channels that know whether the other side is
// attached.
type peerState interface {
	Connected() bool
}

// NewWorldService wires engine to ch. journal may be nil.
func NewWorldService(engine *world.Engine, ch transport.Channel, sink metrics.MetricsSink, j *journal.Writer, log logger.Logger) *WorldService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &WorldService{engine: engine, ch: ch, sink: sink, journal: j, log: logger.OrNop(log), now: time.Now}
}

// Engine returns the world engine. It must only be used from the tick loop.
func (s *WorldService) Engine() *world.Engine { return s.engine }

// Submit queues a customer order for the next tick.
func (s *WorldService) Submit(o OrderRequest) {
	s.mu.Lock()
	s.submitted = append(s.submitted, o)
	s.mu.Unlock()
}

// Paused reports whether the last Step was skipped for lack of a dispatcher.
func (s *WorldService) Paused() bool { return s.paused }

// Step runs one world tick: drain the channel, add submitted orders, advance
// the simulation and send the reports. The simulation stands still while the
// channel has no peer; submitted orders wait for the next running tick.
func (s *WorldService) Step(ctx context.Context) error {
	if ps, ok := s.ch.(peerState); ok && !ps.Connected() {
		if !s.paused {
			s.log.Warnf("dispatcher detached at tick %d, pausing the world", s.engine.CurrentTick())
		}
		s.paused = true
		return nil
	}
	if s.paused {
		s.log.Infof("dispatcher attached, resuming at tick %d", s.engine.CurrentTick()+1)
		s.paused = false
	}
	start := s.now()
	inbound := s.ch.Poll()

	s.mu.Lock()
	orders := s.submitted
	s.submitted = nil
	s.mu.Unlock()
	for _, o := range orders {
		inbound = append(inbound, s.engine.NewOrder(o.Food, o.Restaurant, o.Address))
	}

	res := s.engine.Tick(inbound)
	pending, err := flush(ctx, s.ch, append(s.pending, res.Outbound...), s.log)
	if err != nil {
		return err
	}
	s.pending = pending

	if s.journal != nil {
		entry := journal.Entry{
			Side:     SideWorld,
			Tick:     res.Tick,
			Time:     start,
			Inbound:  inbound,
			Outbound: res.Outbound,
			Internal: res.Internal,
		}
		for _, d := range res.Diagnostics {
			entry.Diagnostics = append(entry.Diagnostics, d.Error())
		}
		if err := s.journal.Write(entry); err != nil {
			s.log.Errorf("journal: %v", err)
		}
	}
	recordTick(s.sink, s.log, metrics.TickEvent{
		Side:     SideWorld,
		Tick:     res.Tick,
		Inbound:  len(inbound),
		Outbound: len(res.Outbound),
		Duration: s.now().Sub(start),
		Time:     start,
	})
	return nil
}
