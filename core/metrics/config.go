package metrics

import "github.com/kilianp07/robodelivery/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// HTTPAddr exposes /metrics when set, e.g. ":9100".
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
}
