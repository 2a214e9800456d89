package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/robodelivery/core/model"
)

// PointDef is a grid position written as [x, y].
type PointDef []int

func (p PointDef) ToModel() (model.Point, error) {
	if len(p) != 2 {
		return model.Point{}, fmt.Errorf("point %v: want [x, y]", []int(p))
	}
	return model.Pt(p[0], p[1]), nil
}

// OrderDef places a customer order on a given tick.
type OrderDef struct {
	Tick       int      `yaml:"tick"`
	Restaurant PointDef `yaml:"restaurant"`
	Address    PointDef `yaml:"address"`
	Size       int      `yaml:"size"`
}

// WorldDef sets up the simulated city. Order generation is always off.
type WorldDef struct {
	Width             int        `yaml:"width"`
	Height            int        `yaml:"height"`
	MaxRobots         int        `yaml:"max_robots"`
	BackpackCapacity  int        `yaml:"backpack_capacity"`
	BatteryRange      int        `yaml:"battery_range"`
	LowBatteryPercent int        `yaml:"low_battery_percent"`
	PrepTicks         int        `yaml:"prep_ticks"`
	Restaurants       []PointDef `yaml:"restaurants"`
}

// Expected lists what the run must show. Sequence is matched as an ordered
// subsequence of the event timeline; ByTick bounds the first occurrence of a
// kind and AtTick pins it; Counts, Decisions, Orders and Robots are exact.
type Expected struct {
	Sequence  []string       `yaml:"sequence"`
	ByTick    map[string]int `yaml:"by_tick,omitempty"`
	AtTick    map[string]int `yaml:"at_tick,omitempty"`
	Counts    map[string]int `yaml:"counts,omitempty"`
	Decisions map[string]int `yaml:"decisions,omitempty"`
	Orders    map[int]string `yaml:"orders,omitempty"`
	Robots    map[int]string `yaml:"robots,omitempty"`
}

type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Ticks       int        `yaml:"ticks"`
	World       WorldDef   `yaml:"world"`
	Orders      []OrderDef `yaml:"orders"`
	SingleDrop  bool       `yaml:"single_drop,omitempty"`
	Expected    Expected   `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Ticks <= 0 {
		return nil, fmt.Errorf("scenario %s: ticks must be positive", sc.Name)
	}
	return &sc, nil
}
