package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	messagesDropped  *prometheus.CounterVec
	decodeErrors     prometheus.Counter
	reconnects       prometheus.Counter
)

func newCollectors() (prometheus.Counter, prometheus.Counter, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_mqtt_messages_sent_total",
		Help: "Batches published to the broker",
	})
	recv := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_mqtt_messages_received_total",
		Help: "Batches received from the peer topic",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_mqtt_messages_dropped_total",
		Help: "Batches dropped by reason",
	}, []string{"reason"})
	decode := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_mqtt_decode_errors_total",
		Help: "Batches or events that failed to decode",
	})
	reconn := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_mqtt_reconnects_total",
		Help: "Reconnection attempts to the broker",
	})
	return sent, recv, dropped, decode, reconn
}

func init() {
	messagesSent, messagesReceived, messagesDropped, decodeErrors, reconnects = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the MQTT transport metrics on reg, or on the
// default registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesSent, messagesReceived, messagesDropped, decodeErrors, reconnects)
}

// ResetMetrics recreates the collectors for tests.
func ResetMetrics(reg prometheus.Registerer) {
	messagesSent, messagesReceived, messagesDropped, decodeErrors, reconnects = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
