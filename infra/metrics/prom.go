package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
)

// PromSink records dispatcher and world activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	distance    prometheus.Histogram
	transitions *prometheus.CounterVec
	tickLatency *prometheus.HistogramVec
	tickEvents  *prometheus.CounterVec
	fleet       *prometheus.GaugeVec
	orders      *prometheus.GaugeVec
	delivery    prometheus.Histogram
	decisions   *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodelivery_assignments_total",
			Help: "Assignment decisions by outcome",
		}, []string{"outcome"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "robodelivery_assignment_distance_cells",
			Help:    "Manhattan distance from the chosen robot to the restaurant",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodelivery_fsm_events_total",
			Help: "Events fired at robot and order state machines",
		}, []string{"machine", "event", "accepted"}),
		tickLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "robodelivery_tick_duration_seconds",
			Help:    "Time spent processing one tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"side"}),
		tickEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodelivery_tick_events_total",
			Help: "Events consumed and produced by tick loops",
		}, []string{"side", "direction"}),
		fleet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "robodelivery_fleet_robots",
			Help: "Robots per lifecycle state",
		}, []string{"state"}),
		orders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "robodelivery_orders",
			Help: "Orders known to the dispatcher",
		}, []string{"status"}),
		delivery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "robodelivery_delivery_ticks",
			Help:    "Ticks from order creation to delivery",
			Buckets: prometheus.LinearBuckets(5, 5, 12),
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodelivery_decisions_total",
			Help: "Dispatcher decisions by kind",
		}, []string{"decision"}),
	}
	var err error
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.tickLatency, err = register(reg, s.tickLatency); err != nil {
		return nil, err
	}
	if s.tickEvents, err = register(reg, s.tickEvents); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	if s.orders, err = register(reg, s.orders); err != nil {
		return nil, err
	}
	if s.delivery, err = register(reg, s.delivery); err != nil {
		return nil, err
	}
	if s.decisions, err = register(reg, s.decisions); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignment counts the decision and observes the distance of
// successful assignments.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(ev.Outcome).Inc()
	if ev.Outcome == "assigned" {
		s.distance.Observe(float64(ev.Distance))
	}
	return nil
}

// RecordTransition counts a fired state machine event.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Machine, ev.Event, strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}

// RecordTick observes the tick duration and event counts.
func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.tickLatency.WithLabelValues(ev.Side).Observe(ev.Duration.Seconds())
	s.tickEvents.WithLabelValues(ev.Side, "in").Add(float64(ev.Inbound))
	s.tickEvents.WithLabelValues(ev.Side, "out").Add(float64(ev.Outbound))
	return nil
}

// RecordFleet sets the per-state robot gauges.
func (s *PromSink) RecordFleet(ev coremetrics.FleetEvent) error {
	s.fleet.Reset()
	for state, n := range ev.ByState {
		s.fleet.WithLabelValues(state).Set(float64(n))
	}
	s.orders.WithLabelValues("active").Set(float64(ev.ActiveOrders))
	s.orders.WithLabelValues("queued").Set(float64(ev.QueuedOrders))
	return nil
}

// RecordDelivery observes the end-to-end delivery time.
func (s *PromSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.delivery.Observe(float64(ev.Ticks))
	return nil
}

// RecordDecision counts a dispatcher decision.
func (s *PromSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	s.decisions.WithLabelValues(ev.Decision).Inc()
	return nil
}
