// Package statemachine provides the generic (state, event) -> transition
// table that drives apictx's Connection context, replacing the teacher's
// kernel.validTransitions map (kernel/lifecycle.go) with a form generic
// enough to host tagged-variant states per machine, per SPEC_FULL.md 9.
package statemachine

import "fmt"

// State and Event are small comparable tags, one enum per machine
// (apictx defines its own State/Event types per context kind).
type State interface{ comparable }
type Event interface{ comparable }

// Table is a (state, event) -> state transition map for one machine kind.
// A missing entry means the event is not valid in that state and is
// silently ignored by Engine.Fire (mirroring the teacher's
// IsValidTransition returning false rather than panicking).
type Table[S State, E Event] map[S]map[E]S

// IsValid reports whether (from, evt) has a defined transition.
func (t Table[S, E]) IsValid(from S, evt E) bool {
	targets, ok := t[from]
	if !ok {
		return false
	}
	_, ok = targets[evt]
	return ok
}

// Next returns the destination state for (from, evt) and whether it exists.
func (t Table[S, E]) Next(from S, evt E) (S, bool) {
	targets, ok := t[from]
	if !ok {
		var zero S
		return zero, false
	}
	to, ok := targets[evt]
	return to, ok
}

// Engine drives one state machine instance: it holds the current state
// and an enter function invoked on every transition; it is not invoked
// for the initial state the engine is constructed in.
type Engine[S State, E Event] struct {
	table   Table[S, E]
	current S
	enter   func(s S, evt E)
}

// NewEngine constructs an Engine already in `initial`, without invoking
// enter for the initial state; enter first runs on the first successful
// Fire.
func NewEngine[S State, E Event](table Table[S, E], initial S, enter func(s S, evt E)) *Engine[S, E] {
	return &Engine[S, E]{table: table, current: initial, enter: enter}
}

// Current returns the machine's current state.
func (e *Engine[S, E]) Current() S {
	return e.current
}

// Fire applies evt to the machine. If the transition is valid, the engine
// moves to the destination state and invokes enter(to, evt). If the
// transition is not defined for (current, evt), Fire returns false and the
// machine is unchanged — this is not an error, it is how "packet events
// routed past an irrelevant context" are modeled (SPEC_FULL.md 4.4).
func (e *Engine[S, E]) Fire(evt E) bool {
	to, ok := e.table.Next(e.current, evt)
	if !ok {
		return false
	}
	e.current = to
	if e.enter != nil {
		e.enter(to, evt)
	}
	return true
}

// MustFire is Fire but panics on an invalid transition; used in tests and
// in enter actions that issue an ALWAYS transition they know is wired.
func (e *Engine[S, E]) MustFire(evt E) {
	if !e.Fire(evt) {
		panic(fmt.Sprintf("statemachine: invalid transition from %v on %v", e.current, evt))
	}
}
