package testutil

import (
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/manager"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/wire"
)

// Harness wires a Manager to a single LoopbackPlugin registered for the
// given channels, the minimum setup every manager test needs.
type Harness struct {
	Manager *manager.Manager
	Plugin  *LoopbackPlugin
}

// NewHarness builds a ready-to-use Manager/LoopbackPlugin pair. cfg may be
// nil to take config.DefaultRaceConfig(); channels defaults to a single
// "test" channel if none are given.
func NewHarness(cfg *config.RaceConfig, channels ...wire.ChannelId) *Harness {
	if len(channels) == 0 {
		channels = []wire.ChannelId{"test"}
	}
	m := manager.New(cfg, observability.NopLogger{}, observability.NewMetrics(), nil)
	plugin := NewLoopbackPlugin()
	sdk := m.RegisterPlugin("loopback", plugin, channels, 64)
	plugin.SetCallbacks(sdk)
	return &Harness{Manager: m, Plugin: plugin}
}

// Close stops the Manager's own handler and its plugin wrappers.
func (h *Harness) Close() {
	h.Manager.Shutdown()
}
