// Package metrics defines the sinks the dispatcher and the world runtime
// report to. A MetricsSink records assignment decisions; optional recorder
// interfaces cover state machine transitions, tick loops, fleet snapshots and
// deliveries. NewMetricsSink builds sinks from configuration and wraps them in
// a MultiSink when several are configured.
package metrics
