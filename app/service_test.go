package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/config"
	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/core/fleetstatus"
	coremetrics "github.com/kilianp07/robodelivery/core/metrics"
	"github.com/kilianp07/robodelivery/core/model"
	"github.com/kilianp07/robodelivery/core/world"
	"github.com/kilianp07/robodelivery/infra/journal"
	"github.com/kilianp07/robodelivery/infra/metrics"
	"github.com/kilianp07/robodelivery/infra/transport/tcp"
	"github.com/kilianp07/robodelivery/test/util"
)

var order = OrderRequest{Food: model.Food{Size: 1}, Restaurant: model.Pt(2, 0), Address: model.Pt(2, 1)}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		World: world.Config{
			Width:            6,
			Height:           6,
			MaxRobots:        2,
			BackpackCapacity: 3,
			Restaurants:      []model.Point{model.Pt(2, 0)},
			PrepMinTicks:     1,
			PrepMaxTicks:     1,
			ManualOrders:     true,
		},
		DecisionLog: logging.Config{Backend: "memory"},
		TickMS:      1,
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func delivered(t *testing.T, store logging.LogStore) int {
	t.Helper()
	recs, err := store.Query(context.Background(), logging.LogQuery{Decision: logging.DecisionDelivered})
	require.NoError(t, err)
	return len(recs)
}

func TestSimulateDeliversSubmittedOrder(t *testing.T) {
	svc, err := New(testConfig(t), SideSimulate, WithSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	svc.World.Submit(order)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, svc.step.Step(ctx))
	}

	assert.Equal(t, 1, delivered(t, svc.Logs))
	assert.True(t, svc.Dispatcher.Dispatcher().Finished(0))
	status := svc.Status.List(fleetstatus.Filter{})
	require.Len(t, status, 1)
	assert.Equal(t, "field_idle", status[0].State)
	assert.Equal(t, model.Pt(2, 1), status[0].Position)
}

func TestRunStopsAtTickLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = true
	cfg.Journal.Dir = t.TempDir()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	svc, err := New(cfg, SideSimulate, WithSink(sink), WithTickLimit(20))
	require.NoError(t, err)
	svc.World.Submit(order)
	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Close())

	assert.Equal(t, 20, svc.World.Engine().CurrentTick())
	assert.Equal(t, 20, svc.Dispatcher.Dispatcher().Tick())
	for _, side := range []string{SideWorld, SideDispatcher} {
		entries, err := journal.ReadDir(cfg.Journal.Dir, side)
		require.NoError(t, err)
		assert.Len(t, entries, 20, side)
	}

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), util.MetricTimeout)
	defer cancel()
	require.NoError(t, util.WaitForMetric(ctx, srv.URL,
		util.Sample("robodelivery_assignments_total", map[string]string{"outcome": "assigned"})+" 1"))
	require.NoError(t, util.WaitForMetric(ctx, srv.URL,
		util.Sample("robodelivery_tick_events_total", map[string]string{"side": "world", "direction": "in"})))
}

func TestWorldAndDispatcherOverTCP(t *testing.T) {
	worldCfg := testConfig(t)
	worldCfg.Transport.TCP.Addr = "127.0.0.1:0"
	worldSvc, err := New(worldCfg, SideWorld, WithSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer func() { _ = worldSvc.Close() }()

	dispCfg := testConfig(t)
	dispCfg.Transport.TCP.Addr = worldSvc.channels[0].(*tcp.Conn).Addr().String()
	dispCfg.Transport.TCP.BackoffMS = 10
	dispSvc, err := New(dispCfg, SideDispatcher, WithSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer func() { _ = dispSvc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)
	go func() { done <- worldSvc.Run(ctx) }()
	go func() { done <- dispSvc.Run(ctx) }()

	worldSvc.World.Submit(order)
	assert.Eventually(t, func() bool { return delivered(t, dispSvc.Logs) == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}

func TestNewRejectsUnknownSide(t *testing.T) {
	_, err := New(testConfig(t), "both", WithSink(coremetrics.NopSink{}))
	assert.Error(t, err)
}

func TestRunTicksHonoursLimitAndContext(t *testing.T) {
	var n countingStepper
	require.NoError(t, RunTicks(context.Background(), &n, 0, 5))
	assert.Equal(t, 5, int(n))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, RunTicks(ctx, &n, time.Millisecond, 0))
	assert.Equal(t, 5, int(n))
}

type countingStepper int

func (c *countingStepper) Step(context.Context) error {
	*c++
	return nil
}
