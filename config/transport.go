package config

import (
	"fmt"

	"github.com/kilianp07/robodelivery/infra/transport/mqtt"
	"github.com/kilianp07/robodelivery/infra/transport/tcp"
)

// Transport kinds.
const (
	TransportTCP  = "tcp"
	TransportMQTT = "mqtt"
)

// TransportConfig selects the wire between the world and the dispatcher.
type TransportConfig struct {
	Kind string      `json:"kind"`
	TCP  tcp.Config  `json:"tcp"`
	MQTT mqtt.Config `json:"mqtt"`
}

// SetDefaults fills unset fields.
func (c *TransportConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = TransportTCP
	}
	c.TCP.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks the selected transport. The MQTT role is only known once a
// subcommand picks a side, so it is validated when the channel is opened.
func (c TransportConfig) Validate() error {
	switch c.Kind {
	case TransportTCP:
		return c.TCP.Validate()
	case TransportMQTT:
		return nil
	}
	return fmt.Errorf("unknown transport kind %q", c.Kind)
}
