package transport

import (
	"fmt"
	"time"

	"github.com/race-boat/raceboat/handler"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/wire"
)

const lifecycleQueue = "lifecycle"

func connQueue(conn wire.ConnectionId) string {
	return "conn/" + string(conn)
}

// PluginWrapper adapts a single user-supplied Plugin (possibly
// single-threaded, non-thread-safe) into an asynchronous service with its
// own handler, per SPEC_FULL.md 4.2. A lifecycle queue serializes
// init/shutdown; sendPackage and closeConnection go to one queue per
// connection. These queues have no capacity bound, so they apply no
// back-pressure.
type PluginWrapper struct {
	name    string
	plugin  Plugin
	h       *handler.Handler
	logger  observability.Logger
	metrics *observability.Metrics
}

func NewPluginWrapper(name string, plugin Plugin, logger observability.Logger, metrics *observability.Metrics) *PluginWrapper {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &PluginWrapper{
		name:    name,
		plugin:  plugin,
		h:       handler.New("plugin:"+name, logger),
		logger:  logger,
		metrics: metrics,
	}
}

func (w *PluginWrapper) Name() string { return w.name }

// Stop joins the plugin wrapper's handler.
func (w *PluginWrapper) Stop() { w.h.Stop() }

// OnConnectionOpened unblocks the per-connection send queue, so that
// connection's sendPackage calls run in their own queue.
func (w *PluginWrapper) OnConnectionOpened(conn wire.ConnectionId) {
	w.h.Unblock(connQueue(conn))
}

// OnConnectionClosed closes the per-connection queue; any still-queued
// sendPackage calls are cancelled.
func (w *PluginWrapper) OnConnectionClosed(conn wire.ConnectionId) {
	w.h.Close(connQueue(conn))
}

func (w *PluginWrapper) post(queue string, handle wire.RaceHandle, timeout time.Duration, fn func()) SdkResponse {
	w.h.Post(queue, handler.PriorityNormal, fn, timeout, nil)
	return SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (w *PluginWrapper) Init(handle wire.RaceHandle, cfg map[string]any) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		if err := w.plugin.Init(cfg); err != nil {
			w.logger.Error("plugin_init_failed", "plugin", w.name, "err", err)
		}
	})
}

func (w *PluginWrapper) Shutdown(handle wire.RaceHandle) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		if err := w.plugin.Shutdown(); err != nil {
			w.logger.Error("plugin_shutdown_failed", "plugin", w.name, "err", err)
		}
	})
}

func (w *PluginWrapper) ActivateChannel(handle wire.RaceHandle, channel wire.ChannelId, role string) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.ActivateChannel(handle, channel, role)
	})
}

func (w *PluginWrapper) CreateLink(handle wire.RaceHandle, channel wire.ChannelId) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.CreateLink(handle, channel)
	})
}

func (w *PluginWrapper) CreateLinkFromAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.CreateLinkFromAddress(handle, channel, address)
	})
}

func (w *PluginWrapper) LoadLinkAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.LoadLinkAddress(handle, channel, address)
	})
}

func (w *PluginWrapper) DestroyLink(handle wire.RaceHandle, link wire.LinkId) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.DestroyLink(handle, link)
	})
}

func (w *PluginWrapper) OpenConnection(handle wire.RaceHandle, dir wire.ConnectionDirection, link wire.LinkId, priority int, sendTimeout, timeout time.Duration) SdkResponse {
	return w.post(lifecycleQueue, handle, 0, func() {
		w.plugin.OpenConnection(handle, dir, link, "", priority, sendTimeout, timeout)
	})
}

func (w *PluginWrapper) CloseConnection(handle wire.RaceHandle, conn wire.ConnectionId, timeout time.Duration) SdkResponse {
	return w.post(connQueue(conn), handle, timeout, func() {
		w.plugin.CloseConnection(handle, conn, timeout)
	})
}

// SendPackage posts onto the connection's own queue. The queue is
// unbounded: the returned status is always OK, whatever the queue's length,
// and no queue utilization is reported (Handler.Post only rejects a closed
// queue).
func (w *PluginWrapper) SendPackage(handle wire.RaceHandle, conn wire.ConnectionId, encPkg []byte, timeout time.Duration, batchId string) SdkResponse {
	return w.post(connQueue(conn), handle, timeout, func() {
		w.plugin.SendPackage(handle, conn, encPkg, timeout, batchId)
	})
}

func (w *PluginWrapper) FlushChannel(handle wire.RaceHandle, channel wire.ChannelId, batchId string, timeout time.Duration) SdkResponse {
	return w.post(lifecycleQueue, handle, timeout, func() {
		w.plugin.FlushChannel(handle, channel, batchId, timeout)
	})
}

func (w *PluginWrapper) OnUserInputReceived(handle wire.RaceHandle, answered bool, response string, timeout time.Duration) SdkResponse {
	return w.post(lifecycleQueue, handle, timeout, func() {
		w.plugin.OnUserInputReceived(handle, answered, response, timeout)
	})
}

func (w *PluginWrapper) String() string {
	return fmt.Sprintf("PluginWrapper(%s)", w.name)
}
