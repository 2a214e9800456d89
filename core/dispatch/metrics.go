package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rejectedTransitions *prometheus.CounterVec
	commandsIssued      *prometheus.CounterVec
	ignoredEvents       *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_rejected_transitions_total",
			Help: "Events refused by a robot or order state machine",
		},
		[]string{"machine", "event"},
	)
	cmd := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_commands_total",
			Help: "Commands issued to the world runtime",
		},
		[]string{"kind"},
	)
	ign := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_ignored_events_total",
			Help: "Inbound events ignored by the dispatcher",
		},
		[]string{"kind"},
	)
	return rej, cmd, ign
}

func init() {
	rejectedTransitions, commandsIssued, ignoredEvents = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatcher metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(rejectedTransitions, commandsIssued, ignoredEvents)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	rejectedTransitions, commandsIssued, ignoredEvents = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
