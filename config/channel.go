// Package config holds channel properties, the per-operation option
// structs, and the core's top-level configuration.
package config

import "github.com/race-boat/raceboat/wire"

// ChannelProperties describes one transport channel's capabilities, as
// reported by its plugin on activation.
type ChannelProperties struct {
	Roles           []string
	LinkDirection   wire.LinkDirection
	SendType        string
	ReceiveType     string
	ConnectionType  string
	Bootstrap       bool
	MaxSendSize     int
	MaxReceiveSize  int
	MulticastCaps   bool
}

// ChannelEntry is what the manager's channelId -> (status, properties)
// cache holds.
type ChannelEntry struct {
	Status     wire.ChannelStatus
	Properties ChannelProperties
}

// CanAccept reports whether the channel is in a state that permits new
// links, per SPEC_FULL.md 3: only AVAILABLE permits new links.
func (e ChannelEntry) CanAccept() bool {
	return e.Status == wire.ChannelAvailable
}
