// Package export writes dispatcher decision records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
)

// Header is the CSV column order.
var Header = []string{"timestamp", "tick", "decision", "order", "robot", "distance", "reason"}

// Write encodes records in the named format ("json" or "csv").
func Write(w io.Writer, format string, records []logging.LogRecord) error {
	switch format {
	case "json":
		return WriteJSON(w, records)
	case "csv":
		return WriteCSV(w, records)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []logging.LogRecord) error {
	if records == nil {
		records = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes the records to w in CSV format. Absent robot or order ids
// are written as empty cells.
func WriteCSV(w io.Writer, records []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(r.Tick),
			string(r.Decision),
			id(r.Order),
			id(r.Robot),
			strconv.Itoa(r.Distance),
			r.Reason,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func id(v int) string {
	if v == logging.NoID {
		return ""
	}
	return strconv.Itoa(v)
}
