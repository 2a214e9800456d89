package dispatch

import (
	"errors"
	"fmt"
)

// Config defines dispatcher settings. MaxRobots and BackpackCapacity must
// match what the world runtime enforces.
type Config struct {
	MaxRobots        int `json:"max_robots"`
	BackpackCapacity int `json:"backpack_capacity"`
	// BatteryRange is sent with every spawn_robot command.
	BatteryRange int `json:"battery_range"`
	// FirstRobotID is the id handed to the first robot ever spawned.
	FirstRobotID int `json:"first_robot_id"`
	// SingleDrop restricts candidates to field-idle robots so a robot never
	// carries more than one order at a time.
	SingleDrop bool `json:"single_drop"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxRobots == 0 {
		c.MaxRobots = 5
	}
	if c.BackpackCapacity == 0 {
		c.BackpackCapacity = 5
	}
	if c.BatteryRange == 0 {
		c.BatteryRange = 100
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxRobots <= 0 {
		return errors.New("dispatch: max_robots must be positive")
	}
	if c.BackpackCapacity <= 0 {
		return errors.New("dispatch: backpack_capacity must be positive")
	}
	if c.BatteryRange <= 0 {
		return fmt.Errorf("dispatch: battery_range must be positive, got %d", c.BatteryRange)
	}
	if c.FirstRobotID < 0 {
		return fmt.Errorf("dispatch: first_robot_id must not be negative, got %d", c.FirstRobotID)
	}
	return nil
}
