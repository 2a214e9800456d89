package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
)

func seed(t *testing.T) logging.LogStore {
	t.Helper()
	store := logging.NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []logging.LogRecord{
		{Timestamp: base, Tick: 1, Decision: logging.DecisionSpawned, Order: logging.NoID, Robot: 0},
		{Timestamp: base, Tick: 1, Decision: logging.DecisionAssigned, Order: 1, Robot: 0, Distance: 5},
		{Timestamp: base.Add(time.Minute), Tick: 9, Decision: logging.DecisionDeferred, Order: 2, Robot: logging.NoID, Reason: "fleet at 1 robots"},
	}
	for _, rec := range recs {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	return store
}

func query(t *testing.T, h http.Handler, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLogHandlerAuth(t *testing.T) {
	h := NewLogHandler(seed(t), "tok")

	assert.Equal(t, http.StatusUnauthorized, query(t, h, "/api/dispatch/logs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, query(t, h, "/api/dispatch/logs", "nope").Code)
	assert.Equal(t, http.StatusOK, query(t, h, "/api/dispatch/logs", "tok").Code)
}

func TestLogHandlerFilters(t *testing.T) {
	h := NewLogHandler(seed(t), "")

	tests := []struct {
		name  string
		query string
		want  []logging.Decision
	}{
		{name: "all", query: "", want: []logging.Decision{"spawned", "assigned", "deferred"}},
		{name: "by robot", query: "?robot=0", want: []logging.Decision{"spawned", "assigned"}},
		{name: "by order", query: "?order=2", want: []logging.Decision{"deferred"}},
		{name: "by decision", query: "?decision=assigned", want: []logging.Decision{"assigned"}},
		{name: "by start", query: "?start=2024-05-01T12:00:30Z", want: []logging.Decision{"deferred"}},
		{name: "nothing", query: "?robot=7", want: []logging.Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := query(t, h, "/api/dispatch/logs"+tt.query, "")
			require.Equal(t, http.StatusOK, rr.Code)
			var out []logging.LogRecord
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
			got := make([]logging.Decision, len(out))
			for i, rec := range out {
				got[i] = rec.Decision
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogHandlerRejectsBadFilters(t *testing.T) {
	h := NewLogHandler(seed(t), "")
	assert.Equal(t, http.StatusBadRequest, query(t, h, "/api/dispatch/logs?robot=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, query(t, h, "/api/dispatch/logs?start=yesterday", "").Code)
}
