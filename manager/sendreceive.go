package manager

import (
	"context"

	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/wire"
)

// SendReceive opens recv first, then send, sends a hello envelope carrying
// both its recv address and the request payload, and blocks for exactly
// one response (scenario S2). The manager registers the machine under a
// freshly minted packageId so the reply routes back to it directly
// (SPEC_FULL.md 4.5).
func (m *Manager) SendReceive(opts config.SendReceiveOptions, payload []byte) (wire.ApiStatus, []byte, wire.RaceHandle) {
	if err := opts.Validate(payload); err != nil {
		return statusForErr(err), nil, wire.NullHandle
	}

	pc := apictx.NewPendingCallback(opts.Timeout())
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		sr := &apictx.SendReceive{Handle: handle, Opts: opts, Payload: payload, State: apictx.OpInitial, PackageId: wire.NewPackageId(), Callback: pc}
		m.sendRecvs[handle] = sr
		m.metrics.ContextsCreated.WithLabelValues("send_receive").Inc()

		recvConn, err := m.acquireConnection(opts.RecvChannel, opts.RecvRole, "", wire.DirRecv, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		sr.RecvHandle = recvConn.Handle

		m.whenConnected(recvConn, func() {
			m.packageIdIndex[sr.PackageId] = handle

			sendConn, err := m.acquireConnection(opts.SendChannel, opts.SendRole, opts.SendAddress, wire.DirSend, handle)
			if err != nil {
				pc.Complete(wire.StatusChannelInvalid, nil)
				return
			}
			sr.SendHandle = sendConn.Handle

			m.whenConnected(sendConn, func() {
				spanCtx, span := observability.Tracer("raceboat/manager").Start(context.Background(), "send_receive.hello")
				traceId, spanId := observability.SpanCorrelationIDs(spanCtx)
				span.End()

				env := wire.Envelope{
					LinkAddress:  recvConn.LinkAddress,
					ReplyChannel: opts.RecvChannel,
					PackageId:    sr.PackageId,
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
				pw := m.pluginWrapperFor(sendConn)
				if pw == nil {
					pc.Complete(wire.StatusInternalError, nil)
					return
				}
				sr.State = apictx.OpWaitingForApp
				pw.SendPackage(m.nextHandle(), sendConn.ConnId, hello, opts.Timeout(), "")
			})
		})
	})

	status, result := m.waitCallback(pc, opts.Timeout())
	response, _ := result.([]byte)

	m.runSync(func() {
		sr, ok := m.sendRecvs[handle]
		if !ok {
			return
		}
		delete(m.packageIdIndex, sr.PackageId)
		delete(m.sendRecvs, handle)
		m.metrics.OperationsTotal.WithLabelValues("send_receive", status.String()).Inc()
		if sr.RecvHandle != wire.NullHandle {
			m.releaseConnection(sr.RecvHandle, handle)
		}
		if sr.SendHandle != wire.NullHandle {
			m.releaseConnection(sr.SendHandle, handle)
		}
	})

	return status, response, handle
}

// SendReceiveStr is send_receive's string-payload convenience form.
func (m *Manager) SendReceiveStr(opts config.SendReceiveOptions, payload string) (wire.ApiStatus, string, wire.RaceHandle) {
	status, resp, handle := m.SendReceive(opts, []byte(payload))
	return status, string(resp), handle
}

// deliverToSendReceive completes a SendReceive's single expected response.
func (m *Manager) deliverToSendReceive(sr *apictx.SendReceive, payload []byte) {
	if sr.Callback == nil {
		return
	}
	sr.State = apictx.OpFinished
	sr.Callback.Complete(wire.StatusOK, payload)
}

// ReceiveRespond is the server side of send_receive (scenario S2): it
// listens for hello envelopes the same way Listen does, but each accepted
// hello is read with WaitRequest and answered once with Respond rather
// than kept open as a long-lived Conduit.
func (m *Manager) ReceiveRespond(opts config.ReceiveOptions) (wire.ApiStatus, string, wire.RaceHandle) {
	return m.Listen(config.ListenOptions{RecvChannel: opts.RecvChannel, RecvRole: opts.RecvRole})
}

// WaitRequest blocks for the next inbound request on a ReceiveRespond
// handle, returning the request payload and a responder handle to answer
// it with Respond.
func (m *Manager) WaitRequest(listenHandle wire.RaceHandle, timeoutMs int) (wire.ApiStatus, []byte, wire.RaceHandle) {
	status, responder := m.Accept(listenHandle, timeoutMs)
	if status != wire.StatusOK {
		return status, nil, wire.NullHandle
	}
	var request []byte
	m.runSync(func() {
		request = m.conduitHelloMessage[responder]
		delete(m.conduitHelloMessage, responder)
	})
	return status, request, responder
}

// Respond answers a WaitRequest's responder handle exactly once, then
// tears the underlying one-shot conduit down.
func (m *Manager) Respond(responder wire.RaceHandle, payload []byte, timeoutMs int) wire.ApiStatus {
	status := m.ConduitWrite(responder, payload, timeoutMs)
	m.CloseConduit(responder)
	return status
}

// RespondStr is Respond's string-payload convenience form.
func (m *Manager) RespondStr(responder wire.RaceHandle, payload string, timeoutMs int) wire.ApiStatus {
	return m.Respond(responder, []byte(payload), timeoutMs)
}
