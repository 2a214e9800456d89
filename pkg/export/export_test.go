package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
)

var records = []logging.LogRecord{
	{Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Tick: 1, Decision: logging.DecisionSpawned, Order: logging.NoID, Robot: 0},
	{Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Tick: 1, Decision: logging.DecisionAssigned, Order: 3, Robot: 0, Distance: 5},
	{Timestamp: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), Tick: 2, Decision: logging.DecisionDeferred, Order: 4, Robot: logging.NoID, Reason: "fleet at 1 robots, one"},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2024-05-01T12:00:00Z", "1", "spawned", "", "0", "0", ""}, rows[1])
	assert.Equal(t, []string{"2024-05-01T12:00:00Z", "1", "assigned", "3", "0", "5", ""}, rows[2])
	assert.Equal(t, "fleet at 1 robots, one", rows[3][6])
	assert.Equal(t, "", rows[3][4])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records))
	var out []logging.LogRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, records, out)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, "xml", records))
	require.NoError(t, Write(&buf, "csv", records))
	assert.Contains(t, buf.String(), "timestamp,tick,decision")
}
