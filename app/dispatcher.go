package app

import (
	"context"
	"time"

	"github.com/kilianp07/robodelivery/core/dispatch"
	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/infra/journal"
)

// DispatcherService runs the dispatcher against a channel.
type DispatcherService struct {
	d       *dispatch.Dispatcher
	ch      transport.Channel
	sink    metrics.MetricsSink
	journal *journal.Writer
	log     logger.Logger
	now     func() time.Time

	pending events.Batch
}

// NewDispatcherService wires d to ch. journal may be nil.
func NewDispatcherService(d *dispatch.Dispatcher, ch transport.Channel, sink metrics.MetricsSink, j *journal.Writer, log logger.Logger) *DispatcherService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &DispatcherService{d: d, ch: ch, sink: sink, journal: j, log: logger.OrNop(log), now: time.Now}
}

// Dispatcher returns the dispatcher. It must only be used from the tick loop.
func (s *DispatcherService) Dispatcher() *dispatch.Dispatcher { return s.d }

// Step handles whatever the world reported since the previous tick and sends
// the resulting commands.
func (s *DispatcherService) Step(ctx context.Context) error {
	start := s.now()
	inbound := s.ch.Poll()
	cmds := s.d.Handle(ctx, inbound)

	pending, err := flush(ctx, s.ch, append(s.pending, cmds...), s.log)
	if err != nil {
		return err
	}
	s.pending = pending

	if s.journal != nil {
		if err := s.journal.Write(journal.Entry{
			Side:     SideDispatcher,
			Tick:     s.d.Tick(),
			Time:     start,
			Inbound:  inbound,
			Outbound: cmds,
		}); err != nil {
			s.log.Errorf("journal: %v", err)
		}
	}
	recordTick(s.sink, s.log, metrics.TickEvent{
		Side:     SideDispatcher,
		Tick:     s.d.Tick(),
		Inbound:  len(inbound),
		Outbound: len(cmds),
		Duration: s.now().Sub(start),
		Time:     start,
	})
	return nil
}
