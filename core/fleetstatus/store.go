// Package fleetstatus keeps the latest known status of every robot for the
// read-only HTTP API. The dispatcher writes it from its tick loop; handlers
// read it concurrently.
package fleetstatus

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/robodelivery/core/model"
)

// LastDecision summarises the most recent dispatcher decision for a robot.
type LastDecision struct {
	Decision  string    `json:"decision"`
	Order     int       `json:"order"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// Status captures what the dispatcher knows about one robot.
type Status struct {
	RobotID      int           `json:"robot_id"`
	State        string        `json:"state"`
	Position     model.Point   `json:"position"`
	Reserved     int           `json:"reserved"`
	Capacity     int           `json:"capacity"`
	LowBattery   bool          `json:"low_battery"`
	Orders       []int         `json:"orders"`
	LastDecision *LastDecision `json:"last_decision,omitempty"`
}

// Filter restricts List results. Zero values match everything.
type Filter struct {
	State      string
	LowBattery bool
}

type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordDecision(robot int, dec LastDecision)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[int]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[int]Status{}}
}

// Set replaces the status of st.RobotID, keeping its last decision.
func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	if prev, ok := s.data[st.RobotID]; ok && st.LastDecision == nil {
		st.LastDecision = prev.LastDecision
	}
	s.data[st.RobotID] = st
	s.mu.Unlock()
}

func (s *MemoryStore) RecordDecision(robot int, dec LastDecision) {
	s.mu.Lock()
	st, ok := s.data[robot]
	if !ok {
		st.RobotID = robot
	}
	st.LastDecision = &dec
	s.data[robot] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.State != "" && st.State != f.State {
			continue
		}
		if f.LowBattery && !st.LowBattery {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RobotID < res[j].RobotID })
	return res
}
