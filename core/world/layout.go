package world

import (
	"fmt"
	"math/rand"

	"github.com/kilianp07/robodelivery/core/model"
)

// PlaceRestaurants draws count distinct positions inside a w x h city. The
// base at the origin is never used. The result only depends on rng's seed.
func PlaceRestaurants(rng *rand.Rand, count, w, h int) ([]model.Point, error) {
	if count < 0 || count > w*h-1 {
		return nil, fmt.Errorf("cannot place %d restaurants in a %dx%d city", count, w, h)
	}
	taken := map[model.Point]bool{model.Origin: true}
	out := make([]model.Point, 0, count)
	for len(out) < count {
		p := model.Pt(rng.Intn(w), rng.Intn(h))
		if taken[p] {
			continue
		}
		taken[p] = true
		out = append(out, p)
	}
	return out, nil
}
