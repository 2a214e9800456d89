package app

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/transport"
)

// Stepper advances one side of the simulation by one tick.
type Stepper interface {
	Step(ctx context.Context) error
}

// Steppers runs its members in order as a single tick.
type Steppers []Stepper

func (s Steppers) Step(ctx context.Context) error {
	for _, st := range s {
		if err := st.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunTicks calls st every interval until ctx is done or limit ticks ran. A
// zero limit runs forever; a zero interval runs ticks back to back.
func RunTicks(ctx context.Context, st Stepper, interval time.Duration, limit int) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for n := 0; limit == 0 || n < limit; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if err := st.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// flush sends out and returns what must be resent on the next tick. A batch
// too large for the wire is split in halves and sent in order; only a single
// event that does not fit alone is dropped. A closed channel stops the loop.
func flush(ctx context.Context, ch transport.Channel, out events.Batch, log logger.Logger) (events.Batch, error) {
	if len(out) == 0 {
		return nil, nil
	}
	err := ch.Send(ctx, out)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, transport.ErrFrameTooLarge):
		if len(out) == 1 {
			log.Errorf("dropping %s: %v", out[0], err)
			return nil, nil
		}
		half := len(out) / 2
		held, err := flush(ctx, ch, out[:half], log)
		if err != nil || len(held) > 0 {
			return append(append(events.Batch{}, held...), out[half:]...), err
		}
		return flush(ctx, ch, out[half:], log)
	case errors.Is(err, transport.ErrClosed), ctx.Err() != nil:
		return nil, err
	}
	log.Warnf("holding %d events: %v", len(out), err)
	return out, nil
}

func recordTick(sink metrics.MetricsSink, log logger.Logger, ev metrics.TickEvent) {
	rec, ok := sink.(metrics.TickRecorder)
	if !ok {
		return
	}
	if err := rec.RecordTick(ev); err != nil {
		log.Errorf("metrics error: %v", err)
	}
}
