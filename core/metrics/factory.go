package metrics

import (
	"fmt"

	"github.com/kilianp07/robodelivery/core/factory"
)

// Sinks holds the sink backends selectable from the `metrics.sinks` config
// list. infra/metrics registers nop, prometheus and influx.
var Sinks = factory.NewRegistry[MetricsSink]("metrics sink")

// RegisterMetricsSink adds a sink backend under name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return Sinks.Register(name, f)
}

// NewMetricsSink builds one sink per entry. No entries yields NopSink, several
// yield a MultiSink in config order.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := Sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
