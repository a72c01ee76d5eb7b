// Package apictx defines the state tables and per-context data for the
// cooperating state machines described in SPEC_FULL.md 4: Connection,
// Send, Recv, SendReceive, Listen, PreConduit, Conduit, Dial and Resume.
// Connection's states and events are tagged-variant enums driving a
// statemachine.Table (SPEC_FULL.md 9); the per-operation contexts carry a
// plain OpState. The Bootstrap flavors have no context type of their own:
// manager/bootstrap.go composes them from Listen, SendReceive and Dial.
// Cross-context orchestration (the "enter" actions that issue plugin calls
// or notify dependents) is owned by package manager, which holds the only
// references that can see more than one context at a time.
package apictx

import (
	"sync"
	"time"

	"github.com/race-boat/raceboat/statemachine"
	"github.com/race-boat/raceboat/wire"
)

type ConnState int

const (
	ConnInitial ConnState = iota
	ConnActivated
	ConnLinkEstablished
	ConnConnectionOpen
	ConnConnected
	ConnClosing
	ConnConnectionClosed
	ConnLinkClosed
	ConnFailed
)

// String renders a ConnState for logs and the debug/introspection service
// (SPEC_FULL.md 6.1); it is never parsed back, only displayed.
func (s ConnState) String() string {
	switch s {
	case ConnInitial:
		return "INITIAL"
	case ConnActivated:
		return "ACTIVATED"
	case ConnLinkEstablished:
		return "LINK_ESTABLISHED"
	case ConnConnectionOpen:
		return "CONNECTION_OPEN"
	case ConnConnected:
		return "CONNECTED"
	case ConnClosing:
		return "CLOSING"
	case ConnConnectionClosed:
		return "CONNECTION_CLOSED"
	case ConnLinkClosed:
		return "LINK_CLOSED"
	case ConnFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type ConnEvent int

const (
	EvtChannelActivated ConnEvent = iota
	EvtLinkEstablished
	EvtConnectionEstablished
	EvtAlways
	EvtAddDependent
	EvtDetachDependent
	EvtStateMachineFinished
	EvtStateMachineFailed
	EvtReceivePackage
	EvtConnClose
	EvtConnectionDestroyed
	EvtLinkDestroyed
)

// ConnectionTable is the explicit transition table from SPEC_FULL.md 4.4.
func ConnectionTable() statemachine.Table[ConnState, ConnEvent] {
	connectedSelfLoop := map[ConnEvent]ConnState{
		EvtAddDependent:         ConnConnected,
		EvtDetachDependent:      ConnConnected,
		EvtStateMachineFinished: ConnConnected,
		EvtStateMachineFailed:   ConnConnected,
		EvtReceivePackage:       ConnConnected,
		EvtConnClose:            ConnClosing,
	}
	return statemachine.Table[ConnState, ConnEvent]{
		ConnInitial: {
			EvtChannelActivated: ConnActivated,
		},
		ConnActivated: {
			EvtLinkEstablished: ConnLinkEstablished,
		},
		ConnLinkEstablished: {
			EvtConnectionEstablished: ConnConnectionOpen,
		},
		ConnConnectionOpen: {
			EvtAlways: ConnConnected,
		},
		ConnConnected: connectedSelfLoop,
		ConnClosing: {
			EvtConnectionDestroyed: ConnConnectionClosed,
		},
		ConnConnectionClosed: {
			EvtLinkDestroyed: ConnLinkClosed,
		},
		ConnLinkClosed: {},
		ConnFailed:      {},
	}
}

// Connection is the reference-counted transport resource behind every
// Send/Recv/Conduit operation. Identified by its own RaceHandle; looked up
// by (channelId, linkAddress) to dedupe concurrent requests for the same
// underlying link (SPEC_FULL.md 3, invariant 6).
type Connection struct {
	Handle      wire.RaceHandle
	Channel     wire.ChannelId
	Role        string
	Address     string // creator/loader address, empty if this side creates
	Direction   wire.ConnectionDirection
	LinkId      wire.LinkId
	ConnId      wire.ConnectionId
	LinkAddress string

	Engine *statemachine.Engine[ConnState, ConnEvent]

	// Dependents is the reference-counting set (SPEC_FULL.md 3, 5):
	// non-empty iff the connection is not being torn down.
	Dependents map[wire.RaceHandle]bool
}

func NewConnection(handle wire.RaceHandle, channel wire.ChannelId, role, address string, dir wire.ConnectionDirection, enter func(ConnState, ConnEvent)) *Connection {
	c := &Connection{
		Handle:     handle,
		Channel:    channel,
		Role:       role,
		Address:    address,
		Direction:  dir,
		Dependents: make(map[wire.RaceHandle]bool),
	}
	c.Engine = statemachine.NewEngine(ConnectionTable(), ConnInitial, enter)
	return c
}

func (c *Connection) AddDependent(h wire.RaceHandle) {
	c.Dependents[h] = true
}

// RemoveDependent drops h and reports whether the dependent set is now
// empty — the manager uses this to decide whether to tear the connection
// down (SPEC_FULL.md invariant 2).
func (c *Connection) RemoveDependent(h wire.RaceHandle) (empty bool) {
	delete(c.Dependents, h)
	return len(c.Dependents) == 0
}

func (c *Connection) IsEmpty() bool {
	return len(c.Dependents) == 0
}

// PendingCallback is a one-shot completion parked inside a context while a
// blocking operation (receive/read/accept/send_receive) is outstanding.
type PendingCallback struct {
	Deadline  time.Time // zero means no caller-specified timeout
	CreatedAt time.Time
	Done      chan struct{}
	Result    any
	Status    wire.ApiStatus
	mu        sync.Mutex
	fired     bool
}

func NewPendingCallback(timeout time.Duration) *PendingCallback {
	pc := &PendingCallback{Done: make(chan struct{}), CreatedAt: time.Now()}
	if timeout > 0 {
		pc.Deadline = time.Now().Add(timeout)
	}
	return pc
}

// Complete fires the callback exactly once; subsequent calls are no-ops,
// matching "exactly one context is created and eventually destroyed"
// discipline applied to callback completion.
func (pc *PendingCallback) Complete(status wire.ApiStatus, result any) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.fired {
		return
	}
	pc.fired = true
	pc.Status = status
	pc.Result = result
	close(pc.Done)
}

func (pc *PendingCallback) IsExpired(now time.Time) bool {
	return !pc.Deadline.IsZero() && now.After(pc.Deadline)
}
