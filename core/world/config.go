package world

import (
	"errors"
	"fmt"

	"github.com/kilianp07/robodelivery/core/model"
)

// Config holds the world runtime settings. The dispatcher reads MaxRobots and
// BackpackCapacity from the same section.
type Config struct {
	Width             int           `json:"width"`
	Height            int           `json:"height"`
	MaxRobots         int           `json:"max_robots"`
	BackpackCapacity  int           `json:"backpack_capacity"`
	RestaurantCount   int           `json:"restaurant_count"`
	Restaurants       []model.Point `json:"restaurants"`
	LowBatteryPercent int           `json:"low_battery_percent"`
	PrepMinTicks      int           `json:"prep_min_ticks"`
	PrepMaxTicks      int           `json:"prep_max_ticks"`
	OrderProbability  float64       `json:"order_probability"`
	ManualOrders      bool          `json:"manual_orders"`
	MaxFoodSize       int           `json:"max_food_size"`
	Seed              int64         `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Width == 0 {
		c.Width = 10
	}
	if c.Height == 0 {
		c.Height = 10
	}
	if c.MaxRobots == 0 {
		c.MaxRobots = 5
	}
	if c.BackpackCapacity == 0 {
		c.BackpackCapacity = 5
	}
	if c.RestaurantCount == 0 && len(c.Restaurants) == 0 {
		c.RestaurantCount = 3
	}
	if c.LowBatteryPercent == 0 {
		c.LowBatteryPercent = 17
	}
	if c.PrepMinTicks == 0 {
		c.PrepMinTicks = 1
	}
	if c.PrepMaxTicks == 0 {
		c.PrepMaxTicks = 15
	}
	if c.OrderProbability == 0 && !c.ManualOrders {
		c.OrderProbability = 0.15
	}
	if c.MaxFoodSize == 0 {
		c.MaxFoodSize = min(3, c.BackpackCapacity)
	}
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("world: city size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MaxRobots <= 0 {
		return errors.New("world: max_robots must be positive")
	}
	if c.BackpackCapacity <= 0 {
		return errors.New("world: backpack_capacity must be positive")
	}
	if c.LowBatteryPercent < 0 || c.LowBatteryPercent > 100 {
		return fmt.Errorf("world: low_battery_percent %d out of range", c.LowBatteryPercent)
	}
	if c.PrepMinTicks <= 0 || c.PrepMaxTicks < c.PrepMinTicks {
		return fmt.Errorf("world: invalid preparation range [%d, %d]", c.PrepMinTicks, c.PrepMaxTicks)
	}
	if c.OrderProbability < 0 || c.OrderProbability > 1 {
		return fmt.Errorf("world: order_probability %v out of range", c.OrderProbability)
	}
	if c.MaxFoodSize <= 0 {
		return errors.New("world: max_food_size must be positive")
	}
	if c.MaxFoodSize > c.BackpackCapacity {
		return fmt.Errorf("world: max_food_size %d exceeds backpack_capacity %d", c.MaxFoodSize, c.BackpackCapacity)
	}
	if len(c.Restaurants) == 0 && c.RestaurantCount >= c.Width*c.Height {
		return fmt.Errorf("world: %d restaurants do not fit a %dx%d city", c.RestaurantCount, c.Width, c.Height)
	}
	for _, p := range c.Restaurants {
		if !p.In(c.Width, c.Height) || p == model.Origin {
			return fmt.Errorf("world: restaurant %s outside the city or on the base", p)
		}
	}
	return nil
}
