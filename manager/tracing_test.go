package manager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/testutil"
	"github.com/race-boat/raceboat/wire"
)

// TestDialHelloTraceCorrelationDefaultsToZero covers the no-collector case
// (no InitTracer call, global TracerProvider is OTel's no-op default):
// the hello envelope still encodes cleanly with TraceId/SpanId left at
// zero, rather than panicking or poisoning the handshake. This is the
// steady state for every other test in this package.
func TestDialHelloTraceCorrelationDefaultsToZero(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()
	m := h.Manager

	status, addr, listenHandle := m.Listen(config.ListenOptions{
		SendChannel: "test", RecvChannel: "test",
		SendRole: "default", RecvRole: "default",
	})
	require.Equal(t, wire.StatusOK, status)
	defer m.CloseListen(listenHandle)

	type acceptResult struct {
		status  wire.ApiStatus
		conduit wire.RaceHandle
	}
	acceptDone := make(chan acceptResult, 1)
	go func() {
		st, conduit := m.Accept(listenHandle, 2000)
		acceptDone <- acceptResult{st, conduit}
	}()

	dialStatus, dialConduit := m.Dial(config.DialOptions{
		SendChannel: "test", RecvChannel: "test",
		SendRole: "default", RecvRole: "default",
		SendAddress: addr,
	}, []byte("hi"))
	require.Equal(t, wire.StatusOK, dialStatus)
	defer m.CloseConduit(dialConduit)

	accepted := <-acceptDone
	require.Equal(t, wire.StatusOK, accepted.status)
	defer m.CloseConduit(accepted.conduit)

	status, got := m.ConduitRead(accepted.conduit, 2000)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, []byte("hi"), got)

	// Dial stamps the hello from a span of this same tracer; with no
	// provider installed that span carries no IDs.
	spanCtx, span := observability.Tracer("raceboat/manager").Start(context.Background(), "dial.hello")
	traceId, spanId := observability.SpanCorrelationIDs(spanCtx)
	span.End()
	assert.Zero(t, traceId)
	assert.Zero(t, spanId)
}
