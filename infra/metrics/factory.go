package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/robodelivery/core/factory"
	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
)

func init() {
	coremetrics.Sinks.MustRegister("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	// The exporter is served by StartPromServer from metrics.http_addr, so the
	// sink only needs the default registerer.
	coremetrics.Sinks.MustRegister("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})
	coremetrics.Sinks.MustRegister("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
