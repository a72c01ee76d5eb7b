package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

// Receive opens a recv-side connection and blocks until it is CONNECTED,
// returning the link address the caller must hand to a peer's send/dial
// (scenario S1). The returned handle is then read with ReceiveNext.
func (m *Manager) Receive(opts config.ReceiveOptions) (wire.ApiStatus, string, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), "", wire.NullHandle
	}

	pc := apictx.NewPendingCallback(opts.Timeout())
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		r := &apictx.Recv{Handle: handle, Opts: opts, State: apictx.OpInitial}
		m.recvs[handle] = r
		m.metrics.ContextsCreated.WithLabelValues("recv").Inc()
		m.metrics.ContextsActive.WithLabelValues("recv").Inc()

		conn, err := m.acquireConnection(opts.RecvChannel, opts.RecvRole, "", wire.DirRecv, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		r.ConnHandle = conn.Handle
		m.recvByConn[conn.Handle] = handle

		m.whenConnected(conn, func() {
			r.LinkAddress = conn.LinkAddress
			r.State = apictx.OpConnectionOpen
			pc.Complete(wire.StatusOK, conn.LinkAddress)
		})
	})

	status, result := m.waitCallback(pc, opts.Timeout())
	address, _ := result.(string)
	if status != wire.StatusOK {
		m.runSync(func() { m.teardownRecv(handle) })
		return status, "", wire.NullHandle
	}
	return status, address, handle
}

// ReceiveNext blocks for the next inbound payload on a Receive handle.
func (m *Manager) ReceiveNext(handle wire.RaceHandle, timeoutMs int) (wire.ApiStatus, []byte) {
	pc := apictx.NewPendingCallback(msToDuration(timeoutMs))
	var notFound bool

	m.runSync(func() {
		r, ok := m.recvs[handle]
		if !ok {
			notFound = true
			return
		}
		if len(r.Queue) > 0 {
			payload := r.Queue[0]
			r.Queue = r.Queue[1:]
			pc.Complete(wire.StatusOK, payload)
			return
		}
		r.Pending = pc
	})
	if notFound {
		return wire.StatusInvalidArgument, nil
	}

	status, result := m.waitCallback(pc, msToDuration(timeoutMs))
	payload, _ := result.([]byte)
	return status, payload
}

// ReceiveNextStr is ReceiveNext's string-payload convenience form.
func (m *Manager) ReceiveNextStr(handle wire.RaceHandle, timeoutMs int) (wire.ApiStatus, string) {
	status, payload := m.ReceiveNext(handle, timeoutMs)
	return status, string(payload)
}

// CloseRecv tears down a Receive handle and its connection.
func (m *Manager) CloseRecv(handle wire.RaceHandle) wire.ApiStatus {
	m.runSync(func() { m.teardownRecv(handle) })
	return wire.StatusOK
}

func (m *Manager) teardownRecv(handle wire.RaceHandle) {
	r, ok := m.recvs[handle]
	if !ok {
		return
	}
	if r.Pending != nil {
		r.Pending.Complete(wire.StatusCancelled, nil)
	}
	delete(m.recvs, handle)
	delete(m.recvByConn, r.ConnHandle)
	m.metrics.ContextsActive.WithLabelValues("recv").Dec()
	if r.ConnHandle != wire.NullHandle {
		m.releaseConnection(r.ConnHandle, handle)
	}
}
