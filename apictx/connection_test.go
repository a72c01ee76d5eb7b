package apictx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/race-boat/raceboat/wire"
)

func TestConnectionLifecycleHappyPath(t *testing.T) {
	var entered []ConnState
	c := NewConnection(1, "T", "default", "", wire.DirSend, func(s ConnState, _ ConnEvent) {
		entered = append(entered, s)
	})

	assert.True(t, c.Engine.Fire(EvtChannelActivated))
	assert.True(t, c.Engine.Fire(EvtLinkEstablished))
	assert.True(t, c.Engine.Fire(EvtConnectionEstablished))
	assert.True(t, c.Engine.Fire(EvtAlways))
	assert.Equal(t, ConnConnected, c.Engine.Current())
	assert.Equal(t, []ConnState{ConnActivated, ConnLinkEstablished, ConnConnectionOpen, ConnConnected}, entered)
}

func TestConnectionDependentsRefCounting(t *testing.T) {
	c := NewConnection(1, "T", "default", "", wire.DirSend, nil)
	c.AddDependent(10)
	c.AddDependent(11)
	assert.False(t, c.IsEmpty())

	assert.False(t, c.RemoveDependent(10))
	assert.True(t, c.RemoveDependent(11))
	assert.True(t, c.IsEmpty())
}

func TestConnectionTeardownReachesLinkClosed(t *testing.T) {
	c := NewConnection(1, "T", "default", "", wire.DirSend, nil)
	// Drive to CONNECTED.
	c.Engine.Fire(EvtChannelActivated)
	c.Engine.Fire(EvtLinkEstablished)
	c.Engine.Fire(EvtConnectionEstablished)
	c.Engine.Fire(EvtAlways)

	assert.True(t, c.Engine.Fire(EvtConnClose))
	assert.Equal(t, ConnClosing, c.Engine.Current())
	assert.True(t, c.Engine.Fire(EvtConnectionDestroyed))
	assert.Equal(t, ConnConnectionClosed, c.Engine.Current())
	assert.True(t, c.Engine.Fire(EvtLinkDestroyed))
	assert.Equal(t, ConnLinkClosed, c.Engine.Current())

	// Terminal: nothing else is valid.
	assert.False(t, c.Engine.Fire(EvtChannelActivated))
}

func TestPendingCallbackFiresOnce(t *testing.T) {
	pc := NewPendingCallback(0)
	pc.Complete(wire.StatusOK, "first")
	pc.Complete(wire.StatusInternalError, "second")
	<-pc.Done
	assert.Equal(t, wire.StatusOK, pc.Status)
	assert.Equal(t, "first", pc.Result)
}

func TestPendingCallbackExpiry(t *testing.T) {
	pc := NewPendingCallback(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, pc.IsExpired(time.Now()))

	noTimeout := NewPendingCallback(0)
	assert.False(t, noTimeout.IsExpired(time.Now().Add(time.Hour)))
}
