package manager

import (
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

// BootstrapDial performs the two-channel bootstrap pattern (SPEC_FULL.md
// 4.8): it first opens its own final-channel recv connection so it knows
// an address to publish, then exchanges final addresses with the peer
// over the lower-assurance init channels (a one-shot send_receive), and
// finally dials the peer's final channel for real.
func (m *Manager) BootstrapDial(opts config.BootstrapOptions, payload []byte) (wire.ApiStatus, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), wire.NullHandle
	}

	_, finalRecvAddr, finalListenHandle := m.Listen(config.ListenOptions{
		RecvChannel: opts.FinalRecvChannel,
		RecvRole:    opts.RecvRole,
	})
	if finalListenHandle == wire.NullHandle {
		return wire.StatusChannelInvalid, wire.NullHandle
	}

	initHello := wire.Envelope{
		FinalRecvLinkAddress: finalRecvAddr,
		FinalRecvChannel:     opts.FinalRecvChannel,
	}
	raw, err := wire.EncodeEnvelope(initHello)
	if err != nil {
		m.CloseListen(finalListenHandle)
		return wire.StatusInternalError, wire.NullHandle
	}

	status, respRaw, _ := m.SendReceive(config.SendReceiveOptions{
		SendChannel: opts.InitSendChannel,
		RecvChannel: opts.InitRecvChannel,
		SendRole:    opts.SendRole,
		RecvRole:    opts.RecvRole,
		SendAddress: opts.SendAddress,
		TimeoutMs:   opts.TimeoutMs,
	}, raw)
	if status != wire.StatusOK {
		m.CloseListen(finalListenHandle)
		return status, wire.NullHandle
	}

	peerEnv, err := wire.DecodeEnvelope(respRaw)
	if err != nil || peerEnv.FinalRecvLinkAddress == "" {
		m.CloseListen(finalListenHandle)
		return wire.StatusInternalError, wire.NullHandle
	}

	status, conduitHandle := m.Dial(config.DialOptions{
		SendChannel: peerEnv.FinalRecvChannel,
		RecvChannel: opts.FinalRecvChannel,
		SendRole:    opts.SendRole,
		RecvRole:    opts.RecvRole,
		SendAddress: peerEnv.FinalRecvLinkAddress,
		TimeoutMs:   opts.TimeoutMs,
	}, payload)
	m.CloseListen(finalListenHandle)
	return status, conduitHandle
}

// BootstrapDialStr is bootstrap_dial's string-payload convenience form.
func (m *Manager) BootstrapDialStr(opts config.BootstrapOptions, payload string) (wire.ApiStatus, wire.RaceHandle) {
	return m.BootstrapDial(opts, []byte(payload))
}

// BootstrapListen is BootstrapDial's peer: it answers the init exchange
// with its own final recv address, then waits for the dialer's real dial
// on the final channel and returns the resulting Conduit.
func (m *Manager) BootstrapListen(opts config.BootstrapOptions) (wire.ApiStatus, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), wire.NullHandle
	}

	_, finalRecvAddr, finalListenHandle := m.Listen(config.ListenOptions{
		RecvChannel: opts.FinalRecvChannel,
		RecvRole:    opts.RecvRole,
	})
	if finalListenHandle == wire.NullHandle {
		return wire.StatusChannelInvalid, wire.NullHandle
	}

	_, _, initListenHandle := m.ReceiveRespond(config.ReceiveOptions{
		RecvChannel: opts.InitRecvChannel,
		RecvRole:    opts.RecvRole,
	})
	if initListenHandle == wire.NullHandle {
		m.CloseListen(finalListenHandle)
		return wire.StatusChannelInvalid, wire.NullHandle
	}

	status, request, responder := m.WaitRequest(initListenHandle, opts.TimeoutMs)
	if status != wire.StatusOK {
		m.CloseListen(finalListenHandle)
		m.CloseListen(initListenHandle)
		return status, wire.NullHandle
	}

	// The dialer's final recv address travels as the init request's
	// payload, an envelope of its own inside the SendReceive hello.
	peerEnv, _ := wire.DecodeEnvelope(request)

	reply := wire.Envelope{FinalRecvLinkAddress: finalRecvAddr, FinalRecvChannel: opts.FinalRecvChannel}
	raw, err := wire.EncodeEnvelope(reply)
	if err != nil {
		m.Respond(responder, nil, opts.TimeoutMs)
		m.CloseListen(finalListenHandle)
		m.CloseListen(initListenHandle)
		return wire.StatusInternalError, wire.NullHandle
	}
	m.Respond(responder, raw, opts.TimeoutMs)
	m.CloseListen(initListenHandle)

	if peerEnv.FinalRecvChannel == "" {
		m.CloseListen(finalListenHandle)
		return wire.StatusInternalError, wire.NullHandle
	}

	status, conduitHandle := m.Accept(finalListenHandle, opts.TimeoutMs)
	m.CloseListen(finalListenHandle)
	return status, conduitHandle
}
