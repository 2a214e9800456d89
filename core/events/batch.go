package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Batch is the ordered set of events sent by one side during one tick.
type Batch []Event

// Len returns the number of events in the batch.
func (b Batch) Len() int { return len(b) }

// Kinds returns the kinds of the batch in order.
func (b Batch) Kinds() []Kind {
	out := make([]Kind, len(b))
	for i, e := range b {
		out[i] = e.Kind
	}
	return out
}

// EncodeBatch serializes the batch as a JSON array. An empty batch encodes as [].
func EncodeBatch(b Batch) ([]byte, error) {
	if b == nil {
		b = Batch{}
	}
	return json.Marshal(b)
}

// DecodeBatch parses a JSON array of events. A payload that is not a JSON
// array yields an error and no events; the caller drops it. Events with an
// unknown kind or a missing field are skipped and reported as diagnostics
// while the rest of the batch is kept in order.
func DecodeBatch(data []byte) (Batch, []error, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode batch: %w", err)
	}
	out := make(Batch, 0, len(raws))
	var diags []error
	for i, raw := range raws {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Index = i
				diags = append(diags, de)
			} else {
				diags = append(diags, &DecodeError{Index: i, Err: err})
			}
			continue
		}
		out = append(out, ev)
	}
	return out, diags, nil
}
