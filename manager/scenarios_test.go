package manager_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/testutil"
	"github.com/race-boat/raceboat/wire"
)

// TestSendReceive covers scenario S1: a plain recv/send round trip where
// the receiver learns its own link address first and the sender dials it
// directly.
func TestSendReceive(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()
	m := h.Manager

	status, addr, recvHandle := m.Receive(config.ReceiveOptions{RecvChannel: "test", RecvRole: "default"})
	require.Equal(t, wire.StatusOK, status)
	require.NotEmpty(t, addr)

	var sendStatus wire.ApiStatus
	done := make(chan struct{})
	go func() {
		sendStatus, _ = m.Send(config.SendOptions{
			SendChannel: "test", SendRole: "default", SendAddress: addr,
		}, []byte("hello"))
		close(done)
	}()

	status, payload := m.ReceiveNext(recvHandle, 2000)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, []byte("hello"), payload)

	<-done
	assert.Equal(t, wire.StatusOK, sendStatus)

	assert.Equal(t, wire.StatusOK, m.CloseRecv(recvHandle))
}

// TestSendReceiveRoundTrip covers scenario S2: send_receive's single
// request/response exchange against a receive_respond server.
func TestSendReceiveRoundTrip(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()
	m := h.Manager

	status, addr, listenHandle := m.ReceiveRespond(config.ReceiveOptions{RecvChannel: "test", RecvRole: "default"})
	require.Equal(t, wire.StatusOK, status)
	require.NotEmpty(t, addr)
	defer m.CloseListen(listenHandle)

	var serverReq []byte
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		status, req, responder := m.WaitRequest(listenHandle, 2000)
		if status != wire.StatusOK {
			return
		}
		serverReq = req
		m.RespondStr(responder, "pong", 2000)
	}()

	status, resp, _ := m.SendReceive(config.SendReceiveOptions{
		SendChannel: "test", RecvChannel: "test",
		SendRole: "default", RecvRole: "default",
		SendAddress: addr,
	}, []byte("ping"))

	<-serverDone
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, []byte("pong"), resp)
	assert.Equal(t, []byte("ping"), serverReq)
}

// TestDialAccept covers scenario S3: dial_str carries a first application
// payload that the accepting conduit observes as its first read, and the
// resulting conduit is bidirectional.
func TestDialAccept(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()
	m := h.Manager

	status, addr, listenHandle := m.Listen(config.ListenOptions{RecvChannel: "test", RecvRole: "default"})
	require.Equal(t, wire.StatusOK, status)
	defer m.CloseListen(listenHandle)

	var serverConduit wire.RaceHandle
	var acceptStatus wire.ApiStatus
	acceptDone := make(chan struct{})
	go func() {
		acceptStatus, serverConduit = m.Accept(listenHandle, 2000)
		close(acceptDone)
	}()

	status, clientConduit := m.DialStr(config.DialOptions{
		SendChannel: "test", RecvChannel: "test",
		SendRole: "default", RecvRole: "default",
		SendAddress: addr,
	}, "hello from client")
	require.Equal(t, wire.StatusOK, status)
	defer m.CloseConduit(clientConduit)

	<-acceptDone
	require.Equal(t, wire.StatusOK, acceptStatus)
	defer m.CloseConduit(serverConduit)

	readStatus, payload := m.ConduitRead(serverConduit, 2000)
	assert.Equal(t, wire.StatusOK, readStatus)
	assert.Equal(t, []byte("hello from client"), payload)

	writeStatus := m.ConduitWrite(serverConduit, []byte("hi server"), 2000)
	assert.Equal(t, wire.StatusOK, writeStatus)

	readStatus, payload = m.ConduitRead(clientConduit, 2000)
	assert.Equal(t, wire.StatusOK, readStatus)
	assert.Equal(t, []byte("hi server"), payload)
}

// TestConduitCloseCancelsRead confirms closing a conduit wakes a blocked
// ConduitRead with StatusClosing rather than hanging.
func TestConduitCloseCancelsRead(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()
	m := h.Manager

	status, addr, listenHandle := m.Listen(config.ListenOptions{RecvChannel: "test", RecvRole: "default"})
	require.Equal(t, wire.StatusOK, status)
	defer m.CloseListen(listenHandle)

	var serverConduit wire.RaceHandle
	acceptDone := make(chan struct{})
	go func() {
		_, serverConduit = m.Accept(listenHandle, 2000)
		close(acceptDone)
	}()

	status, clientConduit := m.Dial(config.DialOptions{
		SendChannel: "test", RecvChannel: "test",
		SendRole: "default", RecvRole: "default",
		SendAddress: addr,
	}, nil)
	require.Equal(t, wire.StatusOK, status)
	defer m.CloseConduit(clientConduit)
	<-acceptDone

	var readStatus wire.ApiStatus
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readStatus, _ = m.ConduitRead(serverConduit, 5000)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, wire.StatusOK, m.CloseConduit(serverConduit))
	wg.Wait()
	assert.Equal(t, wire.StatusClosing, readStatus)
}

// TestBootstrap covers the two-channel bootstrap pattern end to end.
func TestBootstrap(t *testing.T) {
	h := testutil.NewHarness(nil, "init", "final")
	defer h.Close()
	m := h.Manager

	opts := config.BootstrapOptions{
		InitSendChannel: "init", InitRecvChannel: "init",
		FinalSendChannel: "final", FinalRecvChannel: "final",
		SendRole: "default", RecvRole: "default",
	}

	var listenStatus wire.ApiStatus
	var listenConduit wire.RaceHandle
	listenDone := make(chan struct{})
	go func() {
		listenStatus, listenConduit = m.BootstrapListen(opts)
		close(listenDone)
	}()

	// BootstrapListen needs an init-channel address to be dialable; give it
	// one cycle to register its ReceiveRespond listener before dialing.
	time.Sleep(50 * time.Millisecond)

	dialOpts := opts
	dialOpts.SendAddress = "loopback://init"
	status, dialConduit := m.BootstrapDial(dialOpts, []byte("hi"))

	<-listenDone
	require.Equal(t, wire.StatusOK, status)
	require.Equal(t, wire.StatusOK, listenStatus)
	defer m.CloseConduit(dialConduit)
	defer m.CloseConduit(listenConduit)

	readStatus, payload := m.ConduitRead(listenConduit, 2000)
	assert.Equal(t, wire.StatusOK, readStatus)
	assert.Equal(t, []byte("hi"), payload)
}
