package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/logger"
	"github.com/kilianp07/robodelivery/core/model"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/core/world"
)

// fakeChannel refuses batches above maxEvents and everything while detached.
type fakeChannel struct {
	detached  bool
	maxEvents int
	sent      []events.Batch
}

func (f *fakeChannel) Connected() bool { return !f.detached }

func (f *fakeChannel) Send(_ context.Context, b events.Batch) error {
	if f.detached {
		return transport.ErrNotConnected
	}
	if f.maxEvents > 0 && len(b) > f.maxEvents {
		return transport.ErrFrameTooLarge
	}
	f.sent = append(f.sent, append(events.Batch{}, b...))
	return nil
}

func (f *fakeChannel) Poll() events.Batch { return nil }
func (f *fakeChannel) Close() error       { return nil }

func (f *fakeChannel) events() events.Batch {
	var out events.Batch
	for _, b := range f.sent {
		out = append(out, b...)
	}
	return out
}

func reports(n int) events.Batch {
	out := make(events.Batch, n)
	for i := range out {
		out[i] = events.FoodDelivered(i, model.Pt(1, 1))
	}
	return out
}

func TestFlushSplitsOversizeBatches(t *testing.T) {
	ch := &fakeChannel{maxEvents: 3}
	held, err := flush(context.Background(), ch, reports(10), logger.Nop{})
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.Equal(t, reports(10), ch.events(), "every event arrives once and in order")
	for _, b := range ch.sent {
		assert.LessOrEqual(t, len(b), 3)
	}
}

func TestFlushHoldsWhileDetached(t *testing.T) {
	ch := &fakeChannel{detached: true}
	held, err := flush(context.Background(), ch, reports(4), logger.Nop{})
	require.NoError(t, err)
	assert.Equal(t, reports(4), held)
	assert.Empty(t, ch.sent)
}

func TestWorldPausesWithoutDispatcher(t *testing.T) {
	engine, err := world.NewEngine(world.Config{
		Width:        6,
		Height:       6,
		Restaurants:  []model.Point{model.Pt(2, 0)},
		ManualOrders: true,
	})
	require.NoError(t, err)
	ch := &fakeChannel{detached: true}
	svc := NewWorldService(engine, ch, nil, nil, nil)
	svc.Submit(order)

	for i := 0; i < 50; i++ {
		require.NoError(t, svc.Step(context.Background()))
	}
	assert.True(t, svc.Paused())
	assert.Zero(t, engine.CurrentTick())
	assert.Empty(t, svc.pending)

	ch.detached = false
	require.NoError(t, svc.Step(context.Background()))
	assert.False(t, svc.Paused())
	assert.Equal(t, 1, engine.CurrentTick())
	require.Len(t, ch.sent, 1)
	assert.Equal(t, []events.Kind{events.KindNewOrder}, ch.sent[0].Kinds())
}
