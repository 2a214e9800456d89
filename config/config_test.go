package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/model"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `world:
  width: 20
  height: 15
  max_robots: 3
  backpack_capacity: 4
  restaurants: [[3, 0], [0, 6]]
  manual_orders: true
dispatcher:
  battery_range: 60
transport:
  kind: mqtt
  mqtt:
    broker: "tcp://broker:1883"
    topic_prefix: "city"
metrics:
  http_addr: ":9100"
  sinks:
    - type: "nop"
decision_log:
  backend: "sqlite"
  path: "decisions.db"
journal:
  enabled: true
logging:
  level: debug
api:
  token: secret
tick_ms: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"world.width", cfg.World.Width, 20},
		{"world.restaurants", cfg.World.Restaurants, []model.Point{model.Pt(3, 0), model.Pt(0, 6)}},
		{"world.manual_orders", cfg.World.ManualOrders, true},
		{"dispatcher.max_robots", cfg.Dispatcher.MaxRobots, 3},
		{"dispatcher.backpack_capacity", cfg.Dispatcher.BackpackCapacity, 4},
		{"dispatcher.battery_range", cfg.Dispatcher.BatteryRange, 60},
		{"transport.kind", cfg.Transport.Kind, TransportMQTT},
		{"transport.mqtt.broker", cfg.Transport.MQTT.Broker, "tcp://broker:1883"},
		{"transport.mqtt.topic_prefix", cfg.Transport.MQTT.TopicPrefix, "city"},
		{"transport.tcp.addr", cfg.Transport.TCP.Addr, "127.0.0.1:5000"},
		{"metrics.http_addr", cfg.Metrics.HTTPAddr, ":9100"},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 1},
		{"decision_log.backend", cfg.DecisionLog.Backend, "sqlite"},
		{"journal.enabled", cfg.Journal.Enabled, true},
		{"journal.dir", cfg.Journal.Dir, "journal"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"api.token", cfg.API.Token, "secret"},
		{"tick_ms", cfg.TickMS, 50},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.World.MaxRobots)
	assert.Equal(t, 5, cfg.Dispatcher.MaxRobots)
	assert.Equal(t, 100, cfg.Dispatcher.BatteryRange)
	assert.Equal(t, TransportTCP, cfg.Transport.Kind)
	assert.Equal(t, "jsonl", cfg.DecisionLog.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 200, cfg.TickMS)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := write(t, "config.json", `{"world": {"max_robots": 2, "backpack_capacity": 2}}`)
	t.Setenv("RD_WORLD__MAX_ROBOTS", "4")
	t.Setenv("RD_DISPATCHER__MAX_ROBOTS", "4")
	t.Setenv("RD_TRANSPORT__TCP__ADDR", "0.0.0.0:7000")
	t.Setenv("RD_TICK_MS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.World.MaxRobots)
	assert.Equal(t, 4, cfg.Dispatcher.MaxRobots)
	assert.Equal(t, 2, cfg.Dispatcher.BackpackCapacity)
	assert.Equal(t, "0.0.0.0:7000", cfg.Transport.TCP.Addr)
	assert.Equal(t, 10, cfg.TickMS)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "unsupported format", file: "config.toml", data: ""},
		{name: "malformed yaml", file: "bad.yaml", data: "world: [\n"},
		{name: "fleet mismatch", file: "c.yaml", data: "world:\n  max_robots: 2\ndispatcher:\n  max_robots: 3\n"},
		{name: "capacity mismatch", file: "c.yaml", data: "world:\n  backpack_capacity: 2\ndispatcher:\n  backpack_capacity: 3\n"},
		{name: "unknown transport", file: "c.yaml", data: "transport:\n  kind: carrier-pigeon\n"},
		{name: "unknown backend", file: "c.yaml", data: "decision_log:\n  backend: csv\n"},
		{name: "unknown level", file: "c.yaml", data: "logging:\n  level: chatty\n"},
		{name: "food larger than backpack", file: "c.yaml", data: "world:\n  backpack_capacity: 2\n  max_food_size: 3\n"},
		{name: "bad world", file: "c.yaml", data: "world:\n  order_probability: 2\n"},
		{name: "negative tick", file: "c.yaml", data: "tick_ms: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.file, tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
