package manager

import (
	"context"

	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/wire"
)

// Dial opens recv then send, sends a hello envelope carrying its own recv
// address and an optional first application payload, and emits a Conduit
// handle as soon as both connections are open; it does not wait for the
// peer's PreConduit to accept (SPEC_FULL.md 4.7 — "emits a Conduit handle
// immediately"). A nil payload sends an empty hello message (scenario S3's
// dial_str is the common case of a non-empty one).
func (m *Manager) Dial(opts config.DialOptions, payload []byte) (wire.ApiStatus, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), wire.NullHandle
	}

	pc := apictx.NewPendingCallback(opts.Timeout())
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		d := &apictx.Dial{Handle: handle, Opts: opts, State: apictx.OpInitial, PackageId: wire.NewPackageId()}
		m.dials[handle] = d
		m.metrics.ContextsCreated.WithLabelValues("dial").Inc()

		recvConn, err := m.acquireConnection(opts.RecvChannel, opts.RecvRole, "", wire.DirRecv, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		d.RecvHandle = recvConn.Handle

		m.whenConnected(recvConn, func() {
			sendConn, err := m.acquireConnection(opts.SendChannel, opts.SendRole, opts.SendAddress, wire.DirSend, handle)
			if err != nil {
				pc.Complete(wire.StatusChannelInvalid, nil)
				return
			}
			d.SendHandle = sendConn.Handle

			m.whenConnected(sendConn, func() {
				conduitHandle := m.nextHandle()
				cd := &apictx.Conduit{
					Handle:     conduitHandle,
					PackageId:  d.PackageId,
					SendHandle: sendConn.Handle,
					RecvHandle: recvConn.Handle,
					WriteWaits: make(map[wire.RaceHandle]*apictx.PendingCallback),
				}
				m.conduits[conduitHandle] = cd
				m.packageIdIndex[d.PackageId] = conduitHandle
				m.reattachDependent(recvConn.Handle, handle, conduitHandle)
				m.reattachDependent(sendConn.Handle, handle, conduitHandle)
				delete(m.dials, handle)
				m.metrics.ContextsActive.WithLabelValues("conduit").Inc()
				m.metrics.ContextsCreated.WithLabelValues("conduit").Inc()

				spanCtx, span := observability.Tracer("raceboat/manager").Start(context.Background(), "dial.hello")
				traceId, spanId := observability.SpanCorrelationIDs(spanCtx)
				span.End()

				env := wire.Envelope{
					LinkAddress:  recvConn.LinkAddress,
					ReplyChannel: opts.RecvChannel,
					PackageId:    d.PackageId,
					Message:      payload,
					TraceId:      traceId,
					SpanId:       spanId,
				}
				raw, encErr := wire.EncodeEnvelope(env)
				if encErr != nil {
					pc.Complete(wire.StatusInternalError, nil)
					return
				}
				hello := wire.FramePackage(wire.ZeroPackageId, raw)
				helloHandle := m.nextHandle()
				m.pendingWrites[helloHandle] = apictx.NewPendingCallback(0)
				pw := m.pluginWrapperFor(sendConn)
				if pw != nil {
					pw.SendPackage(helloHandle, sendConn.ConnId, hello, opts.Timeout(), "")
				}
				pc.Complete(wire.StatusOK, conduitHandle)
			})
		})
	})

	status, result := m.waitCallback(pc, opts.Timeout())
	conduitHandle, _ := result.(wire.RaceHandle)
	return status, conduitHandle
}

// DialStr is dial's string-payload convenience form for a dial that sends
// its first application payload as the hello's carried message (SPEC_FULL.md
// scenario S3).
func (m *Manager) DialStr(opts config.DialOptions, payload string) (wire.ApiStatus, wire.RaceHandle) {
	return m.Dial(opts, []byte(payload))
}
