package apictx

import (
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

// OpState is the small state enum shared by the per-operation machines
// (Send, Recv, SendReceive, Listen, PreConduit, Dial, Resume). Unlike
// Connection, these do not need a generic table: each has at most a
// handful of linear states, so the manager assigns the State field
// directly as the operation advances, the same texture as the teacher's
// LifecycleManager.TransitionState.
type OpState int

const (
	OpInitial OpState = iota
	OpConnectionOpen
	OpWaitingForAppAndPlugin
	OpWaitingForApp
	OpWaitingForPlugin
	OpReceived
	OpAccepted
	OpOpening
	OpWaitingForConnections
	OpFinished
	OpFailed
)

// String renders an OpState for logs and the debug/introspection service
// (SPEC_FULL.md 6.1).
func (s OpState) String() string {
	switch s {
	case OpInitial:
		return "INITIAL"
	case OpConnectionOpen:
		return "CONNECTION_OPEN"
	case OpWaitingForAppAndPlugin:
		return "WAITING_FOR_APP_AND_PLUGIN"
	case OpWaitingForApp:
		return "WAITING_FOR_APP"
	case OpWaitingForPlugin:
		return "WAITING_FOR_PLUGIN"
	case OpReceived:
		return "RECEIVED"
	case OpAccepted:
		return "ACCEPTED"
	case OpOpening:
		return "OPENING"
	case OpWaitingForConnections:
		return "WAITING_FOR_CONNECTIONS"
	case OpFinished:
		return "FINISHED"
	case OpFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Send drives channel->link->connection->sendPackage for a single
// fire-and-forget payload (SPEC_FULL.md 4.5).
type Send struct {
	Handle     wire.RaceHandle
	Opts       config.SendOptions
	Payload    []byte
	State      OpState
	ConnHandle wire.RaceHandle
	Callback   *PendingCallback
}

// Recv opens a recv connection and exposes a receiver handle; queues
// packages that arrive before receive() is called.
type Recv struct {
	Handle      wire.RaceHandle
	Opts        config.ReceiveOptions
	State       OpState
	ConnHandle  wire.RaceHandle
	LinkAddress string
	Queue       [][]byte
	Pending     *PendingCallback // the outstanding receive(), if any
}

// SendReceive opens recv first, then send, wraps the payload in a hello
// envelope carrying the recv address, and awaits exactly one response.
type SendReceive struct {
	Handle       wire.RaceHandle
	Opts         config.SendReceiveOptions
	Payload      []byte
	State        OpState
	RecvHandle   wire.RaceHandle
	SendHandle   wire.RaceHandle
	PackageId    wire.PackageId
	Callback     *PendingCallback
}

// Listen owns a recv connection registered for the zero packageId; every
// received hello spawns a PreConduit queued inside it, matched one at a
// time against accept() calls.
type Listen struct {
	Handle      wire.RaceHandle
	Opts        config.ListenOptions
	State       OpState
	ConnHandle  wire.RaceHandle
	LinkAddress string
	Pending     []wire.RaceHandle // queued PreConduit handles awaiting accept()
	Waiting     []*PendingCallback // queued accept() calls awaiting a PreConduit
}

// PreConduit represents a received hello not yet accepted.
type PreConduit struct {
	Handle     wire.RaceHandle
	Listener   wire.RaceHandle
	Hello      wire.Envelope
	State      OpState
	SendHandle wire.RaceHandle
	RecvHandle wire.RaceHandle // detached from the Listen's recv connection
}

// Conduit owns a send + recv connection pair and a 16-byte package-id
// filter: the user-facing bidirectional abstraction.
type Conduit struct {
	Handle     wire.RaceHandle
	PackageId  wire.PackageId
	SendHandle wire.RaceHandle
	RecvHandle wire.RaceHandle
	Inbound    [][]byte
	ReadWait   *PendingCallback
	WriteWaits map[wire.RaceHandle]*PendingCallback
	Closed     bool
	Failed     bool
}

// Dial mints a packageId, opens recv first then send, and once both are
// connected registers the Conduit, posts the hello and returns the Conduit
// handle without waiting for the peer's accept. The handle is not returned
// before both connections are connected, and the Conduit has no outbound
// queue of its own.
type Dial struct {
	Handle      wire.RaceHandle
	Opts        config.DialOptions
	State       OpState
	RecvHandle  wire.RaceHandle
	SendHandle  wire.RaceHandle
	PackageId   wire.PackageId
	ConduitHandle wire.RaceHandle
}

// Resume restarts a conduit from known addresses and a known packageId
// without exchanging a hello.
type Resume struct {
	Handle        wire.RaceHandle
	Opts          config.ResumeOptions
	State         OpState
	RecvHandle    wire.RaceHandle
	SendHandle    wire.RaceHandle
	PackageId     wire.PackageId
	ConduitHandle wire.RaceHandle
}

// Bootstrap{Listen,Dial} (SPEC_FULL.md 4.8) are driven by the manager as a
// composition of the existing Listen/Dial/SendReceive primitives rather
// than a dedicated state machine: the init-channel exchange is exactly a
// one-shot send_receive carrying each side's final link address, and the
// final-channel handoff is exactly a dial/listen pair. See
// manager/bootstrap.go and DESIGN.md.
