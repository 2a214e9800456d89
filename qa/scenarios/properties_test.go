package scenarios

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/events"
)

// randomScenario places orders with probability 0.15 per tick during the
// first placeTicks ticks, spread over three shared restaurants.
func randomScenario(seed int64, prep int, singleDrop bool) *Scenario {
	rng := rand.New(rand.NewSource(seed))
	restaurants := []PointDef{{4, 2}, {11, 9}, {2, 13}}
	const placeTicks = 1200
	var orders []OrderDef
	for tick := 0; tick < placeTicks; tick++ {
		if rng.Float64() >= 0.15 {
			continue
		}
		orders = append(orders, OrderDef{
			Tick:       tick,
			Restaurant: restaurants[rng.Intn(len(restaurants))],
			Address:    PointDef{rng.Intn(15), rng.Intn(15)},
			Size:       1 + rng.Intn(3),
		})
	}
	return &Scenario{
		Name:  fmt.Sprintf("random-%d-prep%d-single%t", seed, prep, singleDrop),
		Ticks: 8000,
		World: WorldDef{
			Width:            15,
			Height:           15,
			MaxRobots:        3,
			BackpackCapacity: 5,
			BatteryRange:     10000,
			PrepTicks:        prep,
			Restaurants:      restaurants,
		},
		Orders:     orders,
		SingleDrop: singleDrop,
	}
}

func TestRandomOrdersAllDelivered(t *testing.T) {
	configs := []struct {
		prep       int
		singleDrop bool
	}{
		{prep: 2},
		{prep: 9},
		{prep: 9, singleDrop: true},
	}
	for _, seed := range []int64{1, 7, 42} {
		for _, c := range configs {
			sc := randomScenario(seed, c.prep, c.singleDrop)
			t.Run(sc.Name, func(t *testing.T) {
				require.NotEmpty(t, sc.Orders)
				res, err := Run(context.Background(), sc)
				require.NoError(t, err)

				assert.Zero(t, res.count(events.KindBatteryDepleted))
				assert.Empty(t, res.Dispatcher.Queue())
				for id := range sc.Orders {
					assert.True(t, res.Dispatcher.Finished(id), "order %d not finished", id)
				}
				assert.Equal(t, len(sc.Orders), res.count(events.KindFoodDelivered))
				assertReadyBeforePickup(t, res.Timeline)
			})
		}
	}
}

// assertReadyBeforePickup checks the timeline order, not just tick numbers:
// within one tick food_ready must still precede food_picked_up.
func assertReadyBeforePickup(t *testing.T, timeline []Step) {
	t.Helper()
	ready := make(map[int]bool)
	picked := make(map[int]bool)
	for i, s := range timeline {
		switch s.Kind {
		case events.KindFoodReady:
			assert.False(t, ready[s.Order], "order %d ready twice (step %d)", s.Order, i)
			ready[s.Order] = true
		case events.KindFoodPickedUp:
			assert.True(t, ready[s.Order], "order %d picked up before ready (tick %d)", s.Order, s.Tick)
			assert.False(t, picked[s.Order], "order %d picked up twice", s.Order)
			picked[s.Order] = true
		}
	}
}
