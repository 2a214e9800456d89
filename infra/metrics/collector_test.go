package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/dispatch"
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/internal/eventbus"
)

func TestNoticeCollectorRecordsDecisions(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := eventbus.NewTyped[dispatch.Notice]()
	done := StartNoticeCollector(context.Background(), bus, sink)

	bus.Publish(dispatch.Notice{Decision: logging.DecisionAssigned, Order: 1, Robot: 0})
	bus.Publish(dispatch.Notice{Decision: logging.DecisionAssigned, Order: 2, Robot: 1})
	bus.Publish(dispatch.Notice{Decision: logging.DecisionDeferred, Order: 3, Robot: logging.NoID})
	bus.Close()
	<-done

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.decisions.WithLabelValues("assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.decisions.WithLabelValues("deferred")))
}

func TestNoticeCollectorSkipsPlainSinks(t *testing.T) {
	done := StartNoticeCollector(context.Background(), eventbus.NewTyped[dispatch.Notice](), assignOnlySink{})
	_, open := <-done
	assert.False(t, open)
}

type assignOnlySink struct{}

func (assignOnlySink) RecordAssignment(coremetrics.AssignmentEvent) error { return nil }
