// Package logging persists the dispatcher's decisions so that assignment
// behaviour can be audited after a run.
package logging

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/robodelivery/core/factory"
)

// Decision names what the dispatcher decided.
type Decision string

const (
	DecisionAssigned   Decision = "assigned"
	DecisionRejected   Decision = "rejected"
	DecisionDeferred   Decision = "deferred"
	DecisionSpawned    Decision = "spawned"
	DecisionRecalled   Decision = "recalled"
	DecisionDelivering Decision = "delivering"
	DecisionDelivered  Decision = "delivered"
	DecisionOrphaned   Decision = "orphaned"
)

// NoID marks an absent robot or order in a LogRecord.
const NoID = -1

// LogRecord captures one dispatcher decision.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Tick      int       `json:"tick"`
	Decision  Decision  `json:"decision"`
	Order     int       `json:"order"`
	Robot     int       `json:"robot"`
	Distance  int       `json:"distance,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// LogQuery defines filters for retrieving records. Nil pointers match
// everything.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	Decision Decision
	Robot    *int
	Order    *int
}

// Match reports whether rec passes the filters.
func (q LogQuery) Match(rec LogRecord) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Decision != "" && rec.Decision != q.Decision {
		return false
	}
	if q.Robot != nil && rec.Robot != *q.Robot {
		return false
	}
	if q.Order != nil && rec.Order != *q.Order {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Config selects and tunes the decision log backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or "memory".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// Rotation settings for the jsonl backend.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "decisions.db"
		default:
			c.Path = "decisions.jsonl"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !slices.Contains(Backends.Names(), c.Backend) {
		return fmt.Errorf("unknown decision log backend %s (have %v)", c.Backend, Backends.Names())
	}
	if c.Backend != "memory" && c.Path == "" {
		return fmt.Errorf("decision log path is required")
	}
	return nil
}

// Backends holds the decision store implementations selectable by
// decision_log.backend.
var Backends = factory.NewRegistry[LogStore]("decision store")

func init() {
	Backends.MustRegister("memory", func(map[string]any) (LogStore, error) {
		return NewMemoryStore(), nil
	})
	Backends.MustRegister("sqlite", func(conf map[string]any) (LogStore, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	Backends.MustRegister("jsonl", func(conf map[string]any) (LogStore, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
}

// Module converts c into the generic form understood by Backends.
func (c Config) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"path":         c.Path,
		"max_size_mb":  c.MaxSizeMB,
		"max_backups":  c.MaxBackups,
		"max_age_days": c.MaxAgeDays,
	}}
}

// Open creates the store described by c.
func Open(c Config) (LogStore, error) {
	return Backends.Create(c.Module())
}
