package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testState int

const (
	sInitial testState = iota
	sOpen
	sClosed
)

type testEvent int

const (
	eOpen testEvent = iota
	eClose
	eUnknown
)

func testTable() Table[testState, testEvent] {
	return Table[testState, testEvent]{
		sInitial: {eOpen: sOpen},
		sOpen:    {eClose: sClosed},
		sClosed:  {},
	}
}

func TestEngineValidTransitions(t *testing.T) {
	var entered []testState
	e := NewEngine(testTable(), sInitial, func(s testState, evt testEvent) {
		entered = append(entered, s)
	})

	assert.Equal(t, sInitial, e.Current())
	assert.True(t, e.Fire(eOpen))
	assert.Equal(t, sOpen, e.Current())
	assert.True(t, e.Fire(eClose))
	assert.Equal(t, sClosed, e.Current())
	assert.Equal(t, []testState{sOpen, sClosed}, entered)
}

func TestEngineInvalidTransitionIgnored(t *testing.T) {
	e := NewEngine(testTable(), sInitial, nil)
	assert.False(t, e.Fire(eClose))
	assert.Equal(t, sInitial, e.Current())
	assert.False(t, e.Fire(eUnknown))
}

func TestEngineMustFirePanicsOnInvalid(t *testing.T) {
	e := NewEngine(testTable(), sInitial, nil)
	assert.Panics(t, func() { e.MustFire(eClose) })
}

func TestTableIsValid(t *testing.T) {
	tbl := testTable()
	assert.True(t, tbl.IsValid(sInitial, eOpen))
	assert.False(t, tbl.IsValid(sInitial, eClose))
	assert.False(t, tbl.IsValid(sClosed, eOpen))
}
