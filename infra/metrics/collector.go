package metrics

import (
	"context"

	"github.com/kilianp07/robodelivery/core/dispatch"
	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/internal/eventbus"
)

// StartNoticeCollector subscribes to the dispatcher notice bus and records
// every decision on sink when it implements DecisionRecorder. It stops when
// the context is canceled or the bus is closed. The returned channel is
// closed once the collector has exited.
func StartNoticeCollector(ctx context.Context, bus *eventbus.TypedBus[dispatch.Notice], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.DecisionRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe(64)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordDecision(coremetrics.DecisionEvent{
					Decision: string(n.Decision),
					Order:    n.Order,
					Robot:    n.Robot,
					Time:     n.Time,
				})
			}
		}
	}()
	return done
}
