package dispatch

import (
	"time"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
)

// Notice is published on the notice bus for every dispatcher decision.
type Notice struct {
	Tick     int
	Decision logging.Decision
	Order    int
	Robot    int
	Distance int
	Reason   string
	Time     time.Time
}

// Record converts the notice to a decision log record.
func (n Notice) Record() logging.LogRecord {
	return logging.LogRecord{
		Timestamp: n.Time,
		Tick:      n.Tick,
		Decision:  n.Decision,
		Order:     n.Order,
		Robot:     n.Robot,
		Distance:  n.Distance,
		Reason:    n.Reason,
	}
}
