// Package testutil provides an in-memory loopback transport plugin and a
// Harness wiring it to a Manager, so manager-level scenarios can run as
// ordinary Go tests without a real pluggable transport.
package testutil

import (
	"sync"
	"time"

	"github.com/race-boat/raceboat/transport"
	"github.com/race-boat/raceboat/wire"
)

type pendingOpen struct {
	handle wire.RaceHandle
	connId wire.ConnectionId
}

// LoopbackPlugin is a transport.Plugin that pairs connections by link
// address within a single process: the first OpenConnection on a given link
// is reported open at once and waits there for a peer, the second pairs
// with it and is reported open too, and SendPackage delivers straight to
// the paired connection's ReceiveEncPkg.
// This mirrors the role a real plugin's underlying network would play, the
// way the teacher's own in-memory fakes stand in for its external
// services (coreengine/testutil/testutil.go).
type LoopbackPlugin struct {
	mu sync.Mutex
	cb transport.Callbacks

	pending map[wire.LinkId]*pendingOpen
	peers   map[wire.ConnectionId]wire.ConnectionId
}

func NewLoopbackPlugin() *LoopbackPlugin {
	return &LoopbackPlugin{
		pending: make(map[wire.LinkId]*pendingOpen),
		peers:   make(map[wire.ConnectionId]wire.ConnectionId),
	}
}

// SetCallbacks wires the plugin to the SdkWrapper returned by
// Manager.RegisterPlugin. A real plugin binary would receive this the same
// way, as a constructor-time or post-construction dependency rather than
// through the Plugin interface itself (SPEC_FULL.md 4.2 — the interface
// only carries the core-to-plugin direction).
func (p *LoopbackPlugin) SetCallbacks(cb transport.Callbacks) {
	p.cb = cb
}

func (p *LoopbackPlugin) Init(map[string]any) error { return nil }
func (p *LoopbackPlugin) Shutdown() error            { return nil }

func (p *LoopbackPlugin) ActivateChannel(handle wire.RaceHandle, channel wire.ChannelId, role string) transport.SdkResponse {
	p.cb.OnChannelStatusChanged(handle, channel, wire.ChannelAvailable, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) DeactivateChannel(handle wire.RaceHandle, channel wire.ChannelId) transport.SdkResponse {
	p.cb.OnChannelStatusChanged(handle, channel, wire.ChannelDisabled, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

// CreateLink mints a deterministic "loopback://<channel>" address rather
// than a random one, standing in for a channel with a well-known rendezvous
// address (e.g. a directory service) so tests can dial a listener without
// an out-of-band discovery step.
func (p *LoopbackPlugin) CreateLink(handle wire.RaceHandle, channel wire.ChannelId) transport.SdkResponse {
	link := wire.LinkId("loopback://" + string(channel))
	p.cb.OnLinkStatusChanged(handle, link, wire.LinkCreated, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) CreateLinkFromAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) transport.SdkResponse {
	p.cb.OnLinkStatusChanged(handle, wire.LinkId(address), wire.LinkCreated, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) LoadLinkAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) transport.SdkResponse {
	p.cb.OnLinkStatusChanged(handle, wire.LinkId(address), wire.LinkCreated, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) LoadLinkAddresses(handle wire.RaceHandle, channel wire.ChannelId, addresses []string) transport.SdkResponse {
	if len(addresses) == 0 {
		return transport.SdkResponse{Status: wire.StatusInvalidArgument, Handle: handle}
	}
	return p.LoadLinkAddress(handle, channel, addresses[0])
}

func (p *LoopbackPlugin) DestroyLink(handle wire.RaceHandle, link wire.LinkId) transport.SdkResponse {
	p.mu.Lock()
	delete(p.pending, link)
	p.mu.Unlock()
	p.cb.OnLinkStatusChanged(handle, link, wire.LinkDestroyed, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

// OpenConnection pairs with whichever other OpenConnection call is
// outstanding on the same link. The first caller is reported open at once
// and parked as pending; the second pairs with it and is reported open.
// Until the pairing, a SendPackage on the first connection fails.
func (p *LoopbackPlugin) OpenConnection(handle wire.RaceHandle, dir wire.ConnectionDirection, link wire.LinkId, linkHints string, priority int, sendTimeout, timeout time.Duration) transport.SdkResponse {
	connId := p.cb.GenerateConnectionId(link)

	p.mu.Lock()
	waiting, ok := p.pending[link]
	if !ok {
		p.pending[link] = &pendingOpen{handle: handle, connId: connId}
		p.mu.Unlock()
		p.cb.OnConnectionStatusChanged(handle, connId, wire.ConnectionOpen, nil, 0)
		return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
	}
	delete(p.pending, link)
	p.peers[connId] = waiting.connId
	p.peers[waiting.connId] = connId
	p.mu.Unlock()

	p.cb.OnConnectionStatusChanged(handle, connId, wire.ConnectionOpen, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) CloseConnection(handle wire.RaceHandle, conn wire.ConnectionId, timeout time.Duration) transport.SdkResponse {
	p.mu.Lock()
	if peer, ok := p.peers[conn]; ok {
		delete(p.peers, peer)
	}
	delete(p.peers, conn)
	p.mu.Unlock()
	p.cb.OnConnectionStatusChanged(handle, conn, wire.ConnectionClosed, nil, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

// SendPackage delivers encPkg straight to the paired connection, as if it
// had crossed a real network instantaneously.
func (p *LoopbackPlugin) SendPackage(handle wire.RaceHandle, conn wire.ConnectionId, encPkg []byte, timeout time.Duration, batchId string) transport.SdkResponse {
	p.mu.Lock()
	peer, ok := p.peers[conn]
	p.mu.Unlock()
	if !ok {
		p.cb.OnPackageStatusChanged(handle, wire.PackageFailedGeneric, 0)
		return transport.SdkResponse{Status: wire.StatusPluginError, Handle: handle}
	}
	p.cb.ReceiveEncPkg(encPkg, []wire.ConnectionId{peer}, 0)
	p.cb.OnPackageStatusChanged(handle, wire.PackageSent, 0)
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) FlushChannel(handle wire.RaceHandle, channel wire.ChannelId, batchId string, timeout time.Duration) transport.SdkResponse {
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (p *LoopbackPlugin) OnUserInputReceived(handle wire.RaceHandle, answered bool, response string, timeout time.Duration) transport.SdkResponse {
	return transport.SdkResponse{Status: wire.StatusOK, Handle: handle}
}
