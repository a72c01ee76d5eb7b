package manager

import (
	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/transport"
	"github.com/race-boat/raceboat/wire"
)

func connKey(channel wire.ChannelId, address string) string {
	return string(channel) + "|" + address
}

// acquireConnection returns the Connection serving (channel, address),
// creating and starting it if none exists yet, and adds dependent as one
// of its reference-counted users (SPEC_FULL.md invariant 6: concurrent
// requests for the same link share one Connection). Must run on the
// manager's own handler goroutine.
func (m *Manager) acquireConnection(channel wire.ChannelId, role, address string, dir wire.ConnectionDirection, dependent wire.RaceHandle) (*apictx.Connection, error) {
	key := connKey(channel, address)
	if h, ok := m.linkConnMap[key]; ok {
		if c, ok := m.connections[h]; ok {
			c.AddDependent(dependent)
			return c, nil
		}
	}

	plugin, err := m.pluginFor(channel)
	if err != nil {
		return nil, err
	}
	handle := m.nextHandle()

	var c *apictx.Connection
	c = apictx.NewConnection(handle, channel, role, address, dir, func(state apictx.ConnState, _ apictx.ConnEvent) {
		m.onConnectionEnter(c, plugin.Name(), state)
	})
	c.AddDependent(dependent)

	m.connections[handle] = c
	m.linkConnMap[key] = handle
	m.metrics.ContextsActive.WithLabelValues("connection").Inc()
	m.metrics.ContextsCreated.WithLabelValues("connection").Inc()
	if err := m.registry.IncrementLoad(plugin.Name()); err != nil {
		m.logger.Warning("registry_increment_failed", "plugin", plugin.Name(), "err", err)
	}

	plugin.ActivateChannel(handle, channel, role)
	return c, nil
}

// onConnectionEnter issues the next plugin call (or notifies dependents)
// for a Connection that just transitioned, per the linear
// activate->link->open chain driven by plugin callbacks
// (SPEC_FULL.md 4.4).
func (m *Manager) onConnectionEnter(c *apictx.Connection, pluginName string, state apictx.ConnState) {
	plugin := m.plugins[pluginName]
	if plugin == nil {
		return
	}
	switch state {
	case apictx.ConnActivated:
		if c.Address != "" && c.Direction == wire.DirSend {
			plugin.LoadLinkAddress(c.Handle, c.Channel, c.Address)
		} else if c.Address != "" {
			plugin.CreateLinkFromAddress(c.Handle, c.Channel, c.Address)
		} else {
			plugin.CreateLink(c.Handle, c.Channel)
		}
	case apictx.ConnLinkEstablished:
		plugin.OpenConnection(c.Handle, c.Direction, c.LinkId, 0, 0, 0)
	case apictx.ConnConnectionOpen:
		c.Engine.MustFire(apictx.EvtAlways)
	case apictx.ConnConnected:
		m.notifyConnectionReady(c)
	case apictx.ConnConnectionClosed:
		plugin.DestroyLink(c.Handle, c.LinkId)
	case apictx.ConnLinkClosed:
		m.registry.DecrementLoad(pluginName)
		m.metrics.ContextsActive.WithLabelValues("connection").Dec()
		delete(m.connections, c.Handle)
		delete(m.linkConnMap, connKey(c.Channel, c.Address))
		delete(m.connIdIndex, c.ConnId)
	}
}

// releaseConnection drops dependent from conn's reference set and, if it
// becomes empty, drives the connection through CloseConnection/DestroyLink.
func (m *Manager) releaseConnection(conn wire.RaceHandle, dependent wire.RaceHandle) {
	c, ok := m.connections[conn]
	if !ok {
		return
	}
	if !c.RemoveDependent(dependent) {
		return
	}
	plugin := m.pluginNameFor(c)
	pw := m.plugins[plugin]
	if pw == nil {
		return
	}
	if c.Engine.Fire(apictx.EvtConnClose) {
		pw.CloseConnection(c.Handle, c.ConnId, 0)
	}
}

// notifyConnectionReady runs and clears every continuation waiting on c.
func (m *Manager) notifyConnectionReady(c *apictx.Connection) {
	waiters := m.connReadyWaiters[c.Handle]
	delete(m.connReadyWaiters, c.Handle)
	for _, fn := range waiters {
		fn()
	}
}

// whenConnected runs fn immediately if c is already CONNECTED, otherwise
// defers it until the Connection's enter action reaches CONNECTED.
func (m *Manager) whenConnected(c *apictx.Connection, fn func()) {
	if c.Engine.Current() == apictx.ConnConnected {
		fn()
		return
	}
	m.connReadyWaiters[c.Handle] = append(m.connReadyWaiters[c.Handle], fn)
}

func (m *Manager) pluginNameFor(c *apictx.Connection) string {
	for name, p := range m.plugins {
		if p != nil {
			_ = p
			return name // single-plugin deployments: the only registered plugin served this connection
		}
	}
	return ""
}

func (m *Manager) pluginWrapperFor(c *apictx.Connection) *transport.PluginWrapper {
	return m.plugins[m.pluginNameFor(c)]
}

// reattachDependent moves a Connection's dependent-set membership from one
// owning context to another without tearing the connection down — used
// when a PreConduit hands its recv connection off to the Conduit it spawns
// (SPEC_FULL.md 4.6's DETACH_DEPENDENT), and when Dial/Resume hand their
// transient context's connections off to the Conduit they create.
func (m *Manager) reattachDependent(connHandle, from, to wire.RaceHandle) {
	c, ok := m.connections[connHandle]
	if !ok {
		return
	}
	c.RemoveDependent(from)
	c.AddDependent(to)
}
