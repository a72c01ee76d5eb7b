package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/handler"
	"github.com/race-boat/raceboat/wire"
)

// The methods below implement transport.ManagerCallbacks. Every one of
// them can run on a plugin's own handler goroutine (SdkWrapper forwards
// straight through from Callbacks), so each hops onto the manager's own
// handler before touching any shared state (SPEC_FULL.md 4.9, 5).

func (m *Manager) OnChannelStatusChanged(pluginName string, handle wire.RaceHandle, channel wire.ChannelId, status wire.ChannelStatus, props map[string]any) {
	m.h.Post(managerQueue, handler.PriorityNormal, func() {
		entry := m.channels[channel]
		entry.Status = status
		m.channels[channel] = entry

		c, ok := m.connections[handle]
		if !ok {
			return
		}
		if status == wire.ChannelAvailable || status == wire.ChannelEnabled {
			c.Engine.Fire(apictx.EvtChannelActivated)
		}
	}, 0, nil)
}

func (m *Manager) OnLinkStatusChanged(pluginName string, handle wire.RaceHandle, link wire.LinkId, status wire.LinkStatus, props map[string]any) {
	m.h.Post(managerQueue, handler.PriorityNormal, func() {
		c, ok := m.connections[handle]
		if !ok {
			return
		}
		c.LinkId = link
		if c.Address == "" {
			// This side created the link; its own link id is the address
			// published to the peer (the loopback/test plugin mints
			// addresses this way — a real transport plugin reports its own
			// externally-dialable address here instead).
			c.LinkAddress = string(link)
		}
		if status == wire.LinkDestroyed {
			c.Engine.Fire(apictx.EvtLinkDestroyed)
			return
		}
		c.Engine.Fire(apictx.EvtLinkEstablished)
	}, 0, nil)
}

func (m *Manager) OnConnectionStatusChanged(pluginName string, handle wire.RaceHandle, conn wire.ConnectionId, status wire.ConnectionStatus, linkProps map[string]any) {
	m.h.Post(managerQueue, handler.PriorityNormal, func() {
		c, ok := m.connections[handle]
		if !ok {
			return
		}
		c.ConnId = conn
		m.connIdIndex[conn] = handle
		switch status {
		case wire.ConnectionOpen:
			c.Engine.Fire(apictx.EvtConnectionEstablished)
			m.drainUnassociated(conn)
		case wire.ConnectionClosed:
			c.Engine.Fire(apictx.EvtConnectionDestroyed)
		}
	}, 0, nil)
}

func (m *Manager) OnPackageStatusChanged(pluginName string, handle wire.RaceHandle, status wire.PackageStatus) {
	m.h.Post(managerQueue, handler.PriorityNormal, func() {
		pc, ok := m.pendingWrites[handle]
		if !ok {
			return
		}
		delete(m.pendingWrites, handle)
		switch status {
		case wire.PackageSent:
			pc.Complete(wire.StatusOK, nil)
		case wire.PackageFailedTimeout:
			pc.Complete(wire.StatusTimeout, nil)
		default:
			pc.Complete(wire.StatusInternalError, nil)
		}
	}, 0, nil)
}

func (m *Manager) ReceiveEncPkg(pluginName string, pkg []byte, connIds []wire.ConnectionId) {
	m.h.Post(managerQueue, handler.PriorityNormal, func() {
		packageId, payload, err := wire.ParsePackage(pkg)
		if err != nil {
			m.logger.Error("malformed_package", "plugin", pluginName, "err", err)
			return
		}
		for _, connId := range connIds {
			m.routeIncoming(connId, packageId, payload)
		}
	}, 0, nil)
}

func (m *Manager) routeIncoming(connId wire.ConnectionId, packageId wire.PackageId, payload []byte) {
	connHandle, ok := m.connIdIndex[connId]
	if !ok {
		m.bufferUnassociated(connId, packageId, payload)
		return
	}

	if packageId.IsZero() {
		if listenHandle, ok := m.listenByConn[connHandle]; ok {
			m.metrics.PackagesReceived.Inc()
			m.onHelloReceived(listenHandle, payload)
			return
		}
	}

	if ctxHandle, ok := m.packageIdIndex[packageId]; ok {
		m.metrics.PackagesReceived.Inc()
		m.deliverByPackageId(ctxHandle, payload)
		return
	}

	if recvHandle, ok := m.recvByConn[connHandle]; ok {
		m.metrics.PackagesReceived.Inc()
		m.deliverToRecv(recvHandle, payload)
		return
	}

	m.bufferUnassociated(connId, packageId, payload)
}

func (m *Manager) bufferUnassociated(connId wire.ConnectionId, packageId wire.PackageId, payload []byte) {
	q := m.unassociatedPackages[connId]
	if len(q) >= m.cfg.UnassociatedPackageCap {
		q = q[1:]
	}
	q = append(q, wire.FramePackage(packageId, payload))
	m.unassociatedPackages[connId] = q
}

// drainUnassociated re-delivers any package buffered before this
// connection's consuming context registered, run right after the
// connection opens.
func (m *Manager) drainUnassociated(connId wire.ConnectionId) {
	q := m.unassociatedPackages[connId]
	if len(q) == 0 {
		return
	}
	delete(m.unassociatedPackages, connId)
	for _, framed := range q {
		packageId, payload, err := wire.ParsePackage(framed)
		if err != nil {
			continue
		}
		m.routeIncoming(connId, packageId, payload)
	}
}

func (m *Manager) deliverByPackageId(handle wire.RaceHandle, payload []byte) {
	if cd, ok := m.conduits[handle]; ok {
		m.deliverToConduit(cd, payload)
		return
	}
	if sr, ok := m.sendRecvs[handle]; ok {
		m.deliverToSendReceive(sr, payload)
		return
	}
}

func (m *Manager) deliverToRecv(handle wire.RaceHandle, payload []byte) {
	r, ok := m.recvs[handle]
	if !ok {
		return
	}
	if r.Pending != nil {
		pc := r.Pending
		r.Pending = nil
		pc.Complete(wire.StatusOK, payload)
		return
	}
	r.Queue = append(r.Queue, payload)
}
