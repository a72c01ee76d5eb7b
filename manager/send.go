package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

// Send performs a fire-and-forget send (SPEC_FULL.md 4.5): it blocks until
// the underlying sendPackage reports PACKAGE_SENT (or failure, or opts'
// timeout elapses), mirroring the synchronous-looking Race API described in
// scenario S1 while every step underneath runs through the async plugin
// contract.
func (m *Manager) Send(opts config.SendOptions, payload []byte) (wire.ApiStatus, wire.RaceHandle) {
	if err := opts.Validate(payload); err != nil {
		return statusForErr(err), wire.NullHandle
	}

	pc := apictx.NewPendingCallback(opts.Timeout())
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		s := &apictx.Send{Handle: handle, Opts: opts, Payload: payload, State: apictx.OpInitial, Callback: pc}
		m.sends[handle] = s
		m.metrics.ContextsCreated.WithLabelValues("send").Inc()
		m.metrics.ContextsActive.WithLabelValues("send").Inc()

		conn, err := m.acquireConnection(opts.SendChannel, opts.SendRole, opts.SendAddress, wire.DirSend, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		s.ConnHandle = conn.Handle
		s.State = apictx.OpConnectionOpen

		m.whenConnected(conn, func() {
			pw := m.pluginWrapperFor(conn)
			if pw == nil {
				pc.Complete(wire.StatusInternalError, nil)
				return
			}
			m.pendingWrites[handle] = pc
			framed := wire.FramePackage(wire.ZeroPackageId, payload)
			pw.SendPackage(handle, conn.ConnId, framed, opts.Timeout(), "")
		})
	})

	status, _ := m.waitCallback(pc, opts.Timeout())

	m.runSync(func() {
		s, ok := m.sends[handle]
		if !ok {
			return
		}
		delete(m.pendingWrites, handle)
		delete(m.sends, handle)
		m.metrics.ContextsActive.WithLabelValues("send").Dec()
		m.metrics.OperationsTotal.WithLabelValues("send", status.String()).Inc()
		if s.ConnHandle != wire.NullHandle {
			m.releaseConnection(s.ConnHandle, handle)
		}
	})

	return status, handle
}

// SendStr is send's string-payload convenience form.
func (m *Manager) SendStr(opts config.SendOptions, payload string) (wire.ApiStatus, wire.RaceHandle) {
	return m.Send(opts, []byte(payload))
}
