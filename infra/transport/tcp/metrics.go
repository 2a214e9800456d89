package tcp

import "github.com/prometheus/client_golang/prometheus"

var (
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	decodeErrors   prometheus.Counter
	reconnects     prometheus.Counter
)

func newCollectors() (prometheus.Counter, prometheus.Counter, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_tcp_frames_sent_total",
		Help: "Frames written to the peer",
	})
	recv := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_tcp_frames_received_total",
		Help: "Frames read from the peer",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_tcp_frames_dropped_total",
		Help: "Frames dropped by reason",
	}, []string{"reason"})
	decode := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_tcp_decode_errors_total",
		Help: "Batches or events that failed to decode",
	})
	reconn := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_tcp_reconnects_total",
		Help: "Connections re-established after a loss",
	})
	return sent, recv, dropped, decode, reconn
}

func init() {
	framesSent, framesReceived, framesDropped, decodeErrors, reconnects = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the transport metrics on reg, or on the
// default registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(framesSent, framesReceived, framesDropped, decodeErrors, reconnects)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	framesSent, framesReceived, framesDropped, decodeErrors, reconnects = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
