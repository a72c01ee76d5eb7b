package debugsvc_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/debugsvc"
	"github.com/race-boat/raceboat/testutil"
	"github.com/race-boat/raceboat/wire"
)

func TestGetStatusReportsActiveContexts(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()

	status, _, recvHandle := h.Manager.Receive(config.ReceiveOptions{RecvChannel: "test", RecvRole: "default"})
	require.Equal(t, wire.StatusOK, status)

	svc := debugsvc.New(h.Manager)
	resp, err := svc.GetStatus(context.Background(), &debugsvc.GetStatusRequest{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), resp.ContextsByKind["recv"])
	assert.Equal(t, int32(1), resp.ActiveChannels)
	assert.GreaterOrEqual(t, resp.HandleHighWater, uint64(recvHandle))
}

func TestListContextsPagesByHandle(t *testing.T) {
	h := testutil.NewHarness(nil, "test")
	defer h.Close()

	_, _, h1 := h.Manager.Receive(config.ReceiveOptions{RecvChannel: "test", RecvRole: "a"})
	_, _, h2 := h.Manager.Receive(config.ReceiveOptions{RecvChannel: "test", RecvRole: "b"})

	svc := debugsvc.New(h.Manager)

	all, err := svc.ListContexts(context.Background(), &debugsvc.ListContextsRequest{})
	require.NoError(t, err)
	require.True(t, sort.IsSorted(byHandle(all.Contexts)), "rows must be ordered by handle")

	recvRows := filterKind(all.Contexts, "recv")
	require.Len(t, recvRows, 2)
	assert.Equal(t, uint64(h1), recvRows[0].Handle)
	assert.Equal(t, uint64(h2), recvRows[1].Handle)

	page, err := svc.ListContexts(context.Background(), &debugsvc.ListContextsRequest{
		AfterHandle: uint64(h1),
	})
	require.NoError(t, err)
	for _, row := range page.Contexts {
		assert.Greater(t, row.Handle, uint64(h1))
	}
	assert.Contains(t, filterKind(page.Contexts, "recv"), debugsvc.ContextRow{Handle: uint64(h2), Kind: "recv", State: recvRows[1].State})
}

type byHandle []debugsvc.ContextRow

func (r byHandle) Len() int           { return len(r) }
func (r byHandle) Less(i, j int) bool { return r[i].Handle < r[j].Handle }
func (r byHandle) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

func filterKind(rows []debugsvc.ContextRow, kind string) []debugsvc.ContextRow {
	var out []debugsvc.ContextRow
	for _, r := range rows {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
