package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/robodelivery/core/dispatch"
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/world"
	"github.com/kilianp07/robodelivery/infra/journal"
)

// EnvPrefix marks environment overrides. RD_WORLD__MAX_ROBOTS=3 sets
// world.max_robots.
const EnvPrefix = "RD_"

type Config struct {
	World       world.Config    `json:"world"`
	Dispatcher  dispatch.Config `json:"dispatcher"`
	Transport   TransportConfig `json:"transport"`
	Metrics     metrics.Config  `json:"metrics"`
	DecisionLog logging.Config  `json:"decision_log"`
	Journal     journal.Config  `json:"journal"`
	Logging     LoggingConfig   `json:"logging"`
	API         APIConfig       `json:"api"`
	// TickMS is the wall clock length of one tick.
	TickMS int `json:"tick_ms"`
}

// APIConfig protects the decision log endpoint.
type APIConfig struct {
	Token string `json:"token"`
}

// Load reads a YAML or JSON file, applies RD_ environment overrides and
// validates the result. An empty path loads defaults and the environment
// only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SetDefaults fills every section. The dispatcher inherits the fleet limits
// of the world when they are not set.
func (c *Config) SetDefaults() {
	c.World.SetDefaults()
	if c.Dispatcher.MaxRobots == 0 {
		c.Dispatcher.MaxRobots = c.World.MaxRobots
	}
	if c.Dispatcher.BackpackCapacity == 0 {
		c.Dispatcher.BackpackCapacity = c.World.BackpackCapacity
	}
	c.Dispatcher.SetDefaults()
	c.Transport.SetDefaults()
	c.DecisionLog.SetDefaults()
	c.Journal.SetDefaults()
	c.Logging.SetDefaults()
	if c.TickMS == 0 {
		c.TickMS = 200
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return err
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return err
	}
	if c.Dispatcher.MaxRobots != c.World.MaxRobots {
		return fmt.Errorf("dispatcher.max_robots %d differs from world.max_robots %d",
			c.Dispatcher.MaxRobots, c.World.MaxRobots)
	}
	if c.Dispatcher.BackpackCapacity != c.World.BackpackCapacity {
		return fmt.Errorf("dispatcher.backpack_capacity %d differs from world.backpack_capacity %d",
			c.Dispatcher.BackpackCapacity, c.World.BackpackCapacity)
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.DecisionLog.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.TickMS < 0 {
		return errors.New("tick_ms must not be negative")
	}
	return nil
}
