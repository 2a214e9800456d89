package metrics

// MultiSink fans records out to several sinks. Sinks lacking an optional
// recorder are skipped for that record.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards to all sinks, returning the first error.
func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards state machine activity.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTick forwards tick summaries.
func (m *MultiSink) RecordTick(ev TickEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TickRecorder); ok {
			if err := rec.RecordTick(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleet forwards fleet snapshots.
func (m *MultiSink) RecordFleet(ev FleetEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FleetRecorder); ok {
			if err := rec.RecordFleet(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDelivery forwards completed deliveries.
func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DeliveryRecorder); ok {
			if err := rec.RecordDelivery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDecision forwards dispatcher decisions.
func (m *MultiSink) RecordDecision(ev DecisionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DecisionRecorder); ok {
			if err := rec.RecordDecision(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
