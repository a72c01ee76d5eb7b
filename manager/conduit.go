package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/wire"
)

// deliverToConduit hands an inbound payload (already stripped of its
// packageId prefix) to a Conduit's pending Read, or buffers it if none is
// outstanding (SPEC_FULL.md 4.6's bounded inbound FIFO; bounding itself is
// enforced by the plugin's own per-connection back-pressure, so the queue
// here is unbounded in-process).
func (m *Manager) deliverToConduit(cd *apictx.Conduit, payload []byte) {
	if cd.ReadWait != nil {
		pc := cd.ReadWait
		cd.ReadWait = nil
		pc.Complete(wire.StatusOK, payload)
		return
	}
	cd.Inbound = append(cd.Inbound, payload)
}

// ConduitRead blocks for the next inbound payload on a Conduit.
func (m *Manager) ConduitRead(handle wire.RaceHandle, timeoutMs int) (wire.ApiStatus, []byte) {
	pc := apictx.NewPendingCallback(msToDuration(timeoutMs))
	var missing bool

	m.runSync(func() {
		cd, ok := m.conduits[handle]
		if !ok {
			missing = true
			return
		}
		if cd.Closed || cd.Failed {
			pc.Complete(statusFor(cd), nil)
			return
		}
		if len(cd.Inbound) > 0 {
			payload := cd.Inbound[0]
			cd.Inbound = cd.Inbound[1:]
			pc.Complete(wire.StatusOK, payload)
			return
		}
		cd.ReadWait = pc
	})
	if missing {
		return wire.StatusInvalidArgument, nil
	}

	status, result := m.waitCallback(pc, msToDuration(timeoutMs))
	payload, _ := result.([]byte)
	return status, payload
}

func statusFor(cd *apictx.Conduit) wire.ApiStatus {
	if cd.Failed {
		return wire.StatusInternalError
	}
	return wire.StatusClosing
}

// CancelRead aborts a Conduit's outstanding Read without closing the
// connection, resolving the Open Question in SPEC_FULL.md 9.1 in favor of
// a cancellable read.
func (m *Manager) CancelRead(handle wire.RaceHandle) wire.ApiStatus {
	m.runSync(func() {
		cd, ok := m.conduits[handle]
		if !ok || cd.ReadWait == nil {
			return
		}
		pc := cd.ReadWait
		cd.ReadWait = nil
		pc.Complete(wire.StatusCancelled, nil)
	})
	return wire.StatusOK
}

// ConduitWrite sends payload framed with the Conduit's packageId, blocking
// until the plugin reports the package's outcome.
func (m *Manager) ConduitWrite(handle wire.RaceHandle, payload []byte, timeoutMs int) wire.ApiStatus {
	pc := apictx.NewPendingCallback(msToDuration(timeoutMs))
	var writeHandle wire.RaceHandle
	var missing bool

	m.runSync(func() {
		cd, ok := m.conduits[handle]
		if !ok {
			missing = true
			return
		}
		if cd.Closed || cd.Failed {
			pc.Complete(statusFor(cd), nil)
			return
		}
		conn, ok := m.connections[cd.SendHandle]
		if !ok {
			pc.Complete(wire.StatusInternalError, nil)
			return
		}
		pw := m.pluginWrapperFor(conn)
		if pw == nil {
			pc.Complete(wire.StatusInternalError, nil)
			return
		}
		writeHandle = m.nextHandle()
		cd.WriteWaits[writeHandle] = pc
		m.pendingWrites[writeHandle] = pc
		framed := wire.FramePackage(cd.PackageId, payload)
		pw.SendPackage(writeHandle, conn.ConnId, framed, msToDuration(timeoutMs), "")
	})
	if missing {
		return wire.StatusInvalidArgument
	}

	status, _ := m.waitCallback(pc, msToDuration(timeoutMs))
	m.runSync(func() {
		if cd, ok := m.conduits[handle]; ok {
			delete(cd.WriteWaits, writeHandle)
		}
	})
	m.metrics.OperationsTotal.WithLabelValues("write", status.String()).Inc()
	return status
}

// CloseConduit tears a Conduit down: both its underlying connections are
// released and any outstanding read/writes are cancelled.
func (m *Manager) CloseConduit(handle wire.RaceHandle) wire.ApiStatus {
	m.runSync(func() {
		cd, ok := m.conduits[handle]
		if !ok {
			return
		}
		cd.Closed = true
		if cd.ReadWait != nil {
			cd.ReadWait.Complete(wire.StatusClosing, nil)
			cd.ReadWait = nil
		}
		for _, pc := range cd.WriteWaits {
			pc.Complete(wire.StatusClosing, nil)
		}
		delete(m.packageIdIndex, cd.PackageId)
		delete(m.conduitHelloMessage, handle)
		delete(m.conduitHello, handle)
		delete(m.conduits, handle)
		m.metrics.ContextsActive.WithLabelValues("conduit").Dec()
		if cd.SendHandle != wire.NullHandle {
			m.releaseConnection(cd.SendHandle, handle)
		}
		if cd.RecvHandle != wire.NullHandle {
			m.releaseConnection(cd.RecvHandle, handle)
		}
	})
	return wire.StatusOK
}
