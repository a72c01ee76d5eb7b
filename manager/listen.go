package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

// Listen opens a recv-side connection registered for the well-known zero
// packageId and blocks until it is CONNECTED, returning the address a
// peer's dial/send_receive must target (SPEC_FULL.md 4.6).
func (m *Manager) Listen(opts config.ListenOptions) (wire.ApiStatus, string, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), "", wire.NullHandle
	}

	pc := apictx.NewPendingCallback(0)
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		l := &apictx.Listen{Handle: handle, Opts: opts, State: apictx.OpInitial}
		m.listens[handle] = l
		m.metrics.ContextsCreated.WithLabelValues("listen").Inc()
		m.metrics.ContextsActive.WithLabelValues("listen").Inc()

		conn, err := m.acquireConnection(opts.RecvChannel, opts.RecvRole, "", wire.DirRecv, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		l.ConnHandle = conn.Handle
		m.listenByConn[conn.Handle] = handle

		m.whenConnected(conn, func() {
			l.LinkAddress = conn.LinkAddress
			l.State = apictx.OpConnectionOpen
			pc.Complete(wire.StatusOK, conn.LinkAddress)
		})
	})

	status, result := m.waitCallback(pc, 0)
	address, _ := result.(string)
	if status != wire.StatusOK {
		return status, "", wire.NullHandle
	}
	return status, address, handle
}

// onHelloReceived decodes an inbound zero-packageId envelope on a
// listener's connection and either hands it straight to a caller already
// blocked in Accept, or parks it as a PreConduit awaiting one
// (SPEC_FULL.md 4.6). A hello with an empty reply channel or link address,
// or whose reply channel differs from the listener's SendChannel when one
// is set, is dropped (scenario S5): no PreConduit is created.
func (m *Manager) onHelloReceived(listenHandle wire.RaceHandle, payload []byte) {
	l, ok := m.listens[listenHandle]
	if !ok {
		return
	}
	env, err := wire.DecodeEnvelope(payload)
	if err != nil {
		m.logger.Warning("malformed_hello", "listen", listenHandle, "err", err)
		return
	}
	if env.ReplyChannel == "" || env.LinkAddress == "" {
		return
	}
	if l.Opts.SendChannel != "" && env.ReplyChannel != l.Opts.SendChannel {
		m.logger.Warning("hello_reply_channel_mismatch", "listen", listenHandle, "reply_channel", env.ReplyChannel)
		return
	}
	if env.TraceId != 0 || env.SpanId != 0 {
		m.logger.Debug("hello_trace_correlation", "listen", listenHandle, "trace_id", env.TraceId, "span_id", env.SpanId)
	}

	preHandle := m.nextHandle()
	pre := &apictx.PreConduit{Handle: preHandle, Listener: listenHandle, Hello: env, State: apictx.OpInitial, RecvHandle: l.ConnHandle}
	m.preConduits[preHandle] = pre
	m.metrics.ContextsCreated.WithLabelValues("preconduit").Inc()

	if len(l.Waiting) > 0 {
		waiter := l.Waiting[0]
		l.Waiting = l.Waiting[1:]
		m.acceptPreConduit(pre, waiter)
		return
	}
	l.Pending = append(l.Pending, preHandle)
}

// Accept blocks until a hello has arrived on handle's listener, opens the
// reply connection, and returns a Conduit bound to the hello's packageId.
func (m *Manager) Accept(handle wire.RaceHandle, timeoutMs int) (wire.ApiStatus, wire.RaceHandle) {
	pc := apictx.NewPendingCallback(msToDuration(timeoutMs))

	m.runSync(func() {
		l, ok := m.listens[handle]
		if !ok {
			pc.Complete(wire.StatusInvalidArgument, nil)
			return
		}
		if len(l.Pending) > 0 {
			preHandle := l.Pending[0]
			l.Pending = l.Pending[1:]
			m.acceptPreConduit(m.preConduits[preHandle], pc)
			return
		}
		l.Waiting = append(l.Waiting, pc)
	})

	status, result := m.waitCallback(pc, msToDuration(timeoutMs))
	conduitHandle, _ := result.(wire.RaceHandle)
	return status, conduitHandle
}

// acceptPreConduit opens the PreConduit's reply connection and, once
// connected, promotes it to a Conduit bound to the hello's packageId,
// detaching the listener's recv connection onto the new Conduit
// (SPEC_FULL.md 4.6's DETACH_DEPENDENT).
func (m *Manager) acceptPreConduit(pre *apictx.PreConduit, cb *apictx.PendingCallback) {
	sendConn, err := m.acquireConnection(pre.Hello.ReplyChannel, "default", pre.Hello.LinkAddress, wire.DirSend, pre.Handle)
	if err != nil {
		delete(m.preConduits, pre.Handle)
		cb.Complete(wire.StatusChannelInvalid, nil)
		return
	}
	pre.SendHandle = sendConn.Handle
	pre.State = apictx.OpAccepted

	m.whenConnected(sendConn, func() {
		conduitHandle := m.nextHandle()
		cd := &apictx.Conduit{
			Handle:     conduitHandle,
			PackageId:  pre.Hello.PackageId,
			SendHandle: sendConn.Handle,
			RecvHandle: pre.RecvHandle,
			WriteWaits: make(map[wire.RaceHandle]*apictx.PendingCallback),
		}
		m.conduits[conduitHandle] = cd
		m.packageIdIndex[pre.Hello.PackageId] = conduitHandle
		m.reattachDependent(pre.RecvHandle, pre.Listener, conduitHandle)
		m.reattachDependent(sendConn.Handle, pre.Handle, conduitHandle)
		if len(pre.Hello.Message) > 0 {
			m.conduitHelloMessage[conduitHandle] = pre.Hello.Message
			// Also surface it as the conduit's first readable payload, so a
			// long-lived dial_str/accept conduit sees the hello's message
			// the same way any later Write would be observed (SPEC_FULL.md
			// scenario S3). receive_respond's WaitRequest reads the message
			// straight out of conduitHelloMessage above instead, so this
			// extra queued entry is simply never consumed on that path.
			m.deliverToConduit(cd, pre.Hello.Message)
		}
		m.conduitHello[conduitHandle] = pre.Hello
		delete(m.preConduits, pre.Handle)
		m.metrics.ContextsActive.WithLabelValues("conduit").Inc()
		m.metrics.ContextsCreated.WithLabelValues("conduit").Inc()

		cb.Complete(wire.StatusOK, conduitHandle)
	})
}

// CloseListen tears down a listener's connection; any PreConduits still
// parked waiting for accept() are dropped.
func (m *Manager) CloseListen(handle wire.RaceHandle) wire.ApiStatus {
	m.runSync(func() {
		l, ok := m.listens[handle]
		if !ok {
			return
		}
		for _, waiter := range l.Waiting {
			waiter.Complete(wire.StatusCancelled, nil)
		}
		for _, preHandle := range l.Pending {
			delete(m.preConduits, preHandle)
		}
		delete(m.listens, handle)
		delete(m.listenByConn, l.ConnHandle)
		m.metrics.ContextsActive.WithLabelValues("listen").Dec()
		if l.ConnHandle != wire.NullHandle {
			m.releaseConnection(l.ConnHandle, handle)
		}
	})
	return wire.StatusOK
}
