// Package fsm implements small table driven state machines. A Table maps
// (state, event kind) pairs to named transitions so that a single command can
// resolve to different transitions depending on where the machine currently
// is. Firing an event never panics: the caller receives a Result telling
// whether the transition was legal.
package fsm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/robodelivery/core/events"
)

// ErrIllegalTransition is returned when no transition is defined for the
// current state and the fired event kind.
var ErrIllegalTransition = errors.New("illegal transition")

// State names a node of a machine.
type State string

// Transition is one row of a resolution table.
type Transition struct {
	Name string
	From State
	On   events.Kind
	To   State
}

type key struct {
	from State
	on   events.Kind
}

// Table is an immutable resolution table shared by every machine of a family.
type Table struct {
	name     string
	initial  State
	terminal map[State]bool
	rows     map[key]Transition
}

// NewTable builds a table. Two rows with the same (From, On) pair are
// rejected since resolution must be unambiguous.
func NewTable(name string, initial State, rows ...Transition) (*Table, error) {
	t := &Table{
		name:     name,
		initial:  initial,
		terminal: make(map[State]bool),
		rows:     make(map[key]Transition, len(rows)),
	}
	for _, r := range rows {
		if r.Name == "" {
			return nil, fmt.Errorf("%s: transition %s->%s has no name", name, r.From, r.To)
		}
		k := key{r.From, r.On}
		if prev, ok := t.rows[k]; ok {
			return nil, fmt.Errorf("%s: %q and %q both handle %s in %s", name, prev.Name, r.Name, r.On, r.From)
		}
		t.rows[k] = r
	}
	return t, nil
}

// MustTable is NewTable for package level tables built from literals.
func MustTable(name string, initial State, rows ...Transition) *Table {
	t, err := NewTable(name, initial, rows...)
	if err != nil {
		panic(err)
	}
	return t
}

// WithTerminal marks states after which the machine accepts nothing. It
// returns the table for chaining.
func (t *Table) WithTerminal(states ...State) *Table {
	for _, s := range states {
		t.terminal[s] = true
	}
	return t
}

// Name returns the machine family name used in logs and metrics.
func (t *Table) Name() string { return t.name }

// Initial returns the state new machines start in.
func (t *Table) Initial() State { return t.initial }

// Resolve looks up the transition for kind in state s.
func (t *Table) Resolve(s State, kind events.Kind) (Transition, bool) {
	tr, ok := t.rows[key{s, kind}]
	return tr, ok
}

// Accepts lists the event kinds legal in state s, sorted.
func (t *Table) Accepts(s State) []events.Kind {
	var out []events.Kind
	for k := range t.rows {
		if k.from == s {
			out = append(out, k.on)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Terminal reports whether s is a terminal state.
func (t *Table) Terminal(s State) bool { return t.terminal[s] }

// Result is the outcome of Machine.Fire.
type Result struct {
	Event      events.Kind
	From       State
	To         State
	Transition string
	Err        error
}

// OK reports whether the transition was applied.
func (r Result) OK() bool { return r.Err == nil }

// Entered reports whether the machine just entered s.
func (r Result) Entered(s State) bool { return r.OK() && r.To == s }

// HistoryLimit bounds the transitions a machine remembers. Pooled robot
// machines live for the whole run, so older entries are dropped.
const HistoryLimit = 32

// Machine is a single instance of a table. It is not safe for concurrent use;
// each process drives its machines from one tick loop.
type Machine struct {
	table    *Table
	current  State
	rejected int
	history  []Result
	observer func(Result)
}

// New creates a machine in the table's initial state.
func (t *Table) New() *Machine {
	return &Machine{table: t, current: t.initial}
}

// Observe registers fn to be called after every Fire, legal or not.
func (m *Machine) Observe(fn func(Result)) { m.observer = fn }

// State returns the current state.
func (m *Machine) State() State { return m.current }

// Table returns the table driving the machine.
func (m *Machine) Table() *Table { return m.table }

// Rejected returns the number of illegal events fired at this machine.
func (m *Machine) Rejected() int { return m.rejected }

// History returns the last HistoryLimit applied transitions, oldest first.
func (m *Machine) History() []Result {
	out := make([]Result, len(m.history))
	copy(out, m.history)
	return out
}

// Can reports whether kind is legal in the current state.
func (m *Machine) Can(kind events.Kind) bool {
	_, ok := m.table.Resolve(m.current, kind)
	return ok
}

// Fire resolves kind against the current state and applies the transition.
// An illegal event leaves the state untouched and returns a Result carrying
// ErrIllegalTransition.
func (m *Machine) Fire(kind events.Kind) Result {
	res := Result{Event: kind, From: m.current, To: m.current}
	tr, ok := m.table.Resolve(m.current, kind)
	if !ok || m.table.Terminal(m.current) {
		m.rejected++
		res.Err = fmt.Errorf("%w: %s cannot handle %s in %s", ErrIllegalTransition, m.table.name, kind, m.current)
	} else {
		m.current = tr.To
		res.To = tr.To
		res.Transition = tr.Name
		m.record(res)
	}
	if m.observer != nil {
		m.observer(res)
	}
	return res
}

func (m *Machine) record(res Result) {
	if len(m.history) == HistoryLimit {
		copy(m.history, m.history[1:])
		m.history = m.history[:HistoryLimit-1]
	}
	m.history = append(m.history, res)
}

// Reset moves the machine back to the initial state and clears its history.
func (m *Machine) Reset() {
	m.current = m.table.initial
	m.history = nil
}
