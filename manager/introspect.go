package manager

import (
	"sort"

	"github.com/race-boat/raceboat/wire"
)

// ContextKind names one of the context maps the manager owns, for
// introspection purposes (SPEC_FULL.md 6.1).
type ContextKind string

const (
	KindConnection  ContextKind = "connection"
	KindSend        ContextKind = "send"
	KindRecv        ContextKind = "recv"
	KindSendReceive ContextKind = "send_receive"
	KindListen      ContextKind = "listen"
	KindPreConduit  ContextKind = "pre_conduit"
	KindConduit     ContextKind = "conduit"
	KindDial        ContextKind = "dial"
	KindResume      ContextKind = "resume"
)

// ContextInfo is one row of ListContexts: a (handle, kind, state) tuple,
// the debug service's minimal view of a stuck or in-flight context.
type ContextInfo struct {
	Handle wire.RaceHandle
	Kind   ContextKind
	State  string
}

// StatusSnapshot is GetStatus's payload: context counts by kind, the
// number of channels the manager has activated, and the handle counter's
// current high-water mark.
type StatusSnapshot struct {
	ContextsByKind  map[ContextKind]int
	ActiveChannels  int
	HandleHighWater wire.RaceHandle
}

// Status returns a point-in-time snapshot of manager state, run on the
// manager's own handler so it observes a consistent view (SPEC_FULL.md
// 5: all context mutation happens on that one goroutine).
func (m *Manager) Status() StatusSnapshot {
	var snap StatusSnapshot
	m.runSync(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		snap = StatusSnapshot{
			ContextsByKind: map[ContextKind]int{
				KindConnection:  len(m.connections),
				KindSend:        len(m.sends),
				KindRecv:        len(m.recvs),
				KindSendReceive: len(m.sendRecvs),
				KindListen:      len(m.listens),
				KindPreConduit:  len(m.preConduits),
				KindConduit:     len(m.conduits),
				KindDial:        len(m.dials),
				KindResume:      len(m.resumes),
			},
			ActiveChannels:  len(m.channels),
			HandleHighWater: m.handles.Current(),
		}
	})
	return snap
}

// ListContexts returns a page of (handle, kind, state) tuples across every
// context map, starting after afterHandle (0 to start from the
// beginning) and capped at limit rows (0 means unbounded). Rows are
// ordered by handle so pagination is stable across calls on an otherwise
// idle manager.
func (m *Manager) ListContexts(afterHandle wire.RaceHandle, limit int) []ContextInfo {
	var rows []ContextInfo
	m.runSync(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for h, c := range m.connections {
			rows = append(rows, ContextInfo{h, KindConnection, c.Engine.Current().String()})
		}
		for h, c := range m.sends {
			rows = append(rows, ContextInfo{h, KindSend, c.State.String()})
		}
		for h, c := range m.recvs {
			rows = append(rows, ContextInfo{h, KindRecv, c.State.String()})
		}
		for h, c := range m.sendRecvs {
			rows = append(rows, ContextInfo{h, KindSendReceive, c.State.String()})
		}
		for h, c := range m.listens {
			rows = append(rows, ContextInfo{h, KindListen, c.State.String()})
		}
		for h, c := range m.preConduits {
			rows = append(rows, ContextInfo{h, KindPreConduit, c.State.String()})
		}
		for h, c := range m.conduits {
			rows = append(rows, ContextInfo{h, KindConduit, conduitState(c.Closed, c.Failed)})
		}
		for h, c := range m.dials {
			rows = append(rows, ContextInfo{h, KindDial, c.State.String()})
		}
		for h, c := range m.resumes {
			rows = append(rows, ContextInfo{h, KindResume, c.State.String()})
		}
	})

	sort.Slice(rows, func(i, j int) bool { return rows[i].Handle < rows[j].Handle })

	start := 0
	for start < len(rows) && rows[start].Handle <= afterHandle {
		start++
	}
	rows = rows[start:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func conduitState(closed, failed bool) string {
	switch {
	case failed:
		return "FAILED"
	case closed:
		return "CLOSED"
	default:
		return "OPEN"
	}
}
