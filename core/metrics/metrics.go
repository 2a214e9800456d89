package metrics

import "time"

// AssignmentEvent records one decision of the assignment heuristic.
type AssignmentEvent struct {
	Order    int
	Robot    int
	Outcome  string
	Distance int
	Time     time.Time
}

// MetricsSink records assignment decisions. Richer sinks implement the
// optional recorder interfaces below; callers type-assert before use.
type MetricsSink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// TransitionEvent is one attempt to fire an event at a state machine.
type TransitionEvent struct {
	Machine    string
	Event      string
	From       string
	To         string
	Transition string
	Accepted   bool
	Time       time.Time
}

// TransitionRecorder records state machine activity.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// TickEvent summarises one tick of a process loop.
type TickEvent struct {
	Side     string
	Tick     int
	Inbound  int
	Outbound int
	Duration time.Duration
	Time     time.Time
}

// TickRecorder records tick loop activity.
type TickRecorder interface {
	RecordTick(ev TickEvent) error
}

// FleetEvent is a snapshot of the fleet as seen by the dispatcher.
type FleetEvent struct {
	ByState      map[string]int
	ActiveOrders int
	QueuedOrders int
	Time         time.Time
}

// FleetRecorder records fleet snapshots.
type FleetRecorder interface {
	RecordFleet(ev FleetEvent) error
}

// DeliveryEvent is emitted when an order reaches its terminal state.
type DeliveryEvent struct {
	Order int
	Robot int
	// Ticks is the number of dispatcher ticks between creation and delivery.
	Ticks int
	Time  time.Time
}

// DeliveryRecorder records completed deliveries.
type DeliveryRecorder interface {
	RecordDelivery(ev DeliveryEvent) error
}

// DecisionEvent is one dispatcher decision as published on the notice bus.
type DecisionEvent struct {
	Decision string
	Order    int
	Robot    int
	Time     time.Time
}

// DecisionRecorder records dispatcher decisions.
type DecisionRecorder interface {
	RecordDecision(ev DecisionEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error { return nil }
func (NopSink) RecordTransition(TransitionEvent) error { return nil }
func (NopSink) RecordTick(TickEvent) error             { return nil }
func (NopSink) RecordFleet(FleetEvent) error           { return nil }
func (NopSink) RecordDelivery(DeliveryEvent) error     { return nil }
func (NopSink) RecordDecision(DecisionEvent) error     { return nil }
