package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordAssignment(coremetrics.AssignmentEvent{Outcome: "assigned", Distance: 4}))
	require.NoError(t, sink.RecordAssignment(coremetrics.AssignmentEvent{Outcome: "deferred"}))
	require.NoError(t, sink.RecordTransition(coremetrics.TransitionEvent{Machine: "robot", Event: "pick_food", Accepted: false}))
	require.NoError(t, sink.RecordTick(coremetrics.TickEvent{Side: "world", Inbound: 2, Outbound: 3, Duration: time.Millisecond}))
	require.NoError(t, sink.RecordFleet(coremetrics.FleetEvent{ByState: map[string]int{"field_idle": 2}, ActiveOrders: 3, QueuedOrders: 1}))
	require.NoError(t, sink.RecordDelivery(coremetrics.DeliveryEvent{Ticks: 12}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.assignments.WithLabelValues("assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.assignments.WithLabelValues("deferred")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.transitions.WithLabelValues("robot", "pick_food", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.tickEvents.WithLabelValues("world", "out")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.fleet.WithLabelValues("field_idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.orders.WithLabelValues("queued")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordAssignment(coremetrics.AssignmentEvent{Outcome: "rejected"}))
	require.NoError(t, second.RecordAssignment(coremetrics.AssignmentEvent{Outcome: "rejected"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(second.assignments.WithLabelValues("rejected")))
}
