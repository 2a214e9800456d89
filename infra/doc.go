// Package infra contains technical adapters: the TCP and MQTT transports,
// the tick journal, metrics sinks and the zerolog logger. These packages
// depend only on the interfaces defined in the core packages.
package infra
