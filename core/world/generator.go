package world

import (
	"math/rand"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/ids"
	"github.com/kilianp07/robodelivery/core/model"
)

// Generator creates random orders on behalf of the customers.
type Generator struct {
	Probability float64
	MaxFoodSize int
	Width       int
	Height      int

	rng *rand.Rand
	ids *ids.Allocator
}

// NewGenerator returns a generator drawing ids from alloc.
func NewGenerator(cfg Config, rng *rand.Rand, alloc *ids.Allocator) *Generator {
	return &Generator{
		Probability: cfg.OrderProbability,
		MaxFoodSize: cfg.MaxFoodSize,
		Width:       cfg.Width,
		Height:      cfg.Height,
		rng:         rng,
		ids:         alloc,
	}
}

// Maybe rolls the dice for one tick and returns a new_order event on success.
func (g *Generator) Maybe(restaurants []model.Point) (events.Event, bool) {
	if g.Probability <= 0 || len(restaurants) == 0 {
		return events.Event{}, false
	}
	if g.rng.Float64() >= g.Probability {
		return events.Event{}, false
	}
	address := model.Pt(g.rng.Intn(g.Width), g.rng.Intn(g.Height))
	restaurant := restaurants[g.rng.Intn(len(restaurants))]
	food := model.Food{Size: 1 + g.rng.Intn(g.MaxFoodSize)}
	return events.NewOrder(g.ids.Next(), food, address, restaurant), true
}
