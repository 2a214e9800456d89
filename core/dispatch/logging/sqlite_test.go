package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePersistQuery(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Now()
	recs := []LogRecord{
		{Timestamp: base, Tick: 1, Decision: DecisionSpawned, Robot: 1, Order: NoID},
		{Timestamp: base.Add(time.Second), Tick: 1, Decision: DecisionAssigned, Robot: 1, Order: 0, Distance: 4},
		{Timestamp: base.Add(2 * time.Second), Tick: 2, Decision: DecisionDeferred, Robot: NoID, Order: 1, Reason: "fleet full"},
	}
	for _, r := range recs {
		require.NoError(t, store.Append(ctx, r))
	}

	out, err := store.Query(ctx, LogQuery{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "fleet full", out[2].Reason)

	order := 0
	out, err = store.Query(ctx, LogQuery{Order: &order})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, DecisionAssigned, out[0].Decision)

	out, err = store.Query(ctx, LogQuery{Start: base.Add(500 * time.Millisecond), Decision: DecisionDeferred})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Tick)
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"jsonl", "sqlite", "memory"} {
		cfg := Config{Backend: backend, Path: filepath.Join(dir, "log-"+backend)}
		cfg.SetDefaults()
		require.NoError(t, cfg.Validate())
		store, err := Open(cfg)
		require.NoError(t, err, backend)
		require.NoError(t, store.Append(context.Background(), LogRecord{Decision: DecisionRecalled}))
		out, err := store.Query(context.Background(), LogQuery{Decision: DecisionRecalled})
		require.NoError(t, err)
		assert.Len(t, out, 1, backend)
		require.NoError(t, store.Close())
	}
	bad := Config{Backend: "csv"}
	bad.SetDefaults()
	assert.Error(t, bad.Validate())
}
