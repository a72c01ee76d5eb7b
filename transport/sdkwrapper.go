package transport

import (
	"time"

	"github.com/race-boat/raceboat/wire"
)

// ManagerCallbacks is the subset of the API manager that plugin callbacks
// are dispatched into. Defined here (not in package manager) so transport
// never imports manager — manager imports transport and supplies itself
// as this interface, matching the dependency direction the teacher's
// SDK/engine split uses (engine depends on kernel, not vice versa).
type ManagerCallbacks interface {
	OnChannelStatusChanged(plugin string, handle wire.RaceHandle, channel wire.ChannelId, status wire.ChannelStatus, props map[string]any)
	OnLinkStatusChanged(plugin string, handle wire.RaceHandle, link wire.LinkId, status wire.LinkStatus, props map[string]any)
	OnConnectionStatusChanged(plugin string, handle wire.RaceHandle, conn wire.ConnectionId, status wire.ConnectionStatus, linkProps map[string]any)
	OnPackageStatusChanged(plugin string, handle wire.RaceHandle, status wire.PackageStatus)
	ReceiveEncPkg(plugin string, pkg []byte, connIds []wire.ConnectionId)
}

// SdkWrapper is the plugin's handle back into the core (SPEC_FULL.md 4.3):
// the reverse of PluginWrapper. Every method tags the call with the
// plugin's own identifier, preserving per-plugin isolation, and forwards
// into the manager.
type SdkWrapper struct {
	pluginName string
	manager    ManagerCallbacks
	helpers    Helpers
}

func NewSdkWrapper(pluginName string, manager ManagerCallbacks, helpers Helpers) *SdkWrapper {
	return &SdkWrapper{pluginName: pluginName, manager: manager, helpers: helpers}
}

func (s *SdkWrapper) OnChannelStatusChanged(handle wire.RaceHandle, channel wire.ChannelId, status wire.ChannelStatus, props map[string]any, _ time.Duration) SdkResponse {
	s.manager.OnChannelStatusChanged(s.pluginName, handle, channel, status, props)
	return SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (s *SdkWrapper) OnLinkStatusChanged(handle wire.RaceHandle, link wire.LinkId, status wire.LinkStatus, props map[string]any, _ time.Duration) SdkResponse {
	s.manager.OnLinkStatusChanged(s.pluginName, handle, link, status, props)
	return SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (s *SdkWrapper) OnConnectionStatusChanged(handle wire.RaceHandle, conn wire.ConnectionId, status wire.ConnectionStatus, linkProps map[string]any, _ time.Duration) SdkResponse {
	s.manager.OnConnectionStatusChanged(s.pluginName, handle, conn, status, linkProps)
	return SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (s *SdkWrapper) OnPackageStatusChanged(handle wire.RaceHandle, status wire.PackageStatus, _ time.Duration) SdkResponse {
	s.manager.OnPackageStatusChanged(s.pluginName, handle, status)
	return SdkResponse{Status: wire.StatusOK, Handle: handle}
}

func (s *SdkWrapper) ReceiveEncPkg(pkg []byte, connIds []wire.ConnectionId, _ time.Duration) SdkResponse {
	s.manager.ReceiveEncPkg(s.pluginName, pkg, connIds)
	return SdkResponse{Status: wire.StatusOK}
}

func (s *SdkWrapper) UpdateLinkProperties(wire.LinkId, map[string]any, time.Duration) SdkResponse {
	return SdkResponse{Status: wire.StatusOK}
}

func (s *SdkWrapper) GenerateConnectionId(link wire.LinkId) wire.ConnectionId {
	return wire.NewConnectionId(link)
}

func (s *SdkWrapper) GenerateLinkId(channel wire.ChannelId) wire.LinkId {
	return wire.NewLinkId(channel)
}

func (s *SdkWrapper) RequestPluginUserInput(key, prompt string, _ bool) SdkResponse {
	if s.helpers == nil {
		return SdkResponse{Status: wire.StatusInternalError}
	}
	if _, err := s.helpers.RequestUserInput(prompt); err != nil {
		return SdkResponse{Status: wire.StatusInternalError}
	}
	return SdkResponse{Status: wire.StatusOK}
}

func (s *SdkWrapper) RequestCommonUserInput(key string) SdkResponse {
	return s.RequestPluginUserInput(key, key, false)
}

func (s *SdkWrapper) UnblockQueue(wire.ConnectionId) SdkResponse {
	return SdkResponse{Status: wire.StatusOK}
}

// Entropy, Persona, ReadFile, WriteFile, and ChannelParameter delegate
// straight to the externally-owned Helpers collaborator (SPEC_FULL.md 4.3):
// the SDK wrapper never touches contexts for these.

func (s *SdkWrapper) Entropy(numBytes int) ([]byte, error) {
	return s.helpers.Entropy(numBytes)
}

func (s *SdkWrapper) Persona() string {
	return s.helpers.Persona()
}

func (s *SdkWrapper) ReadFile(path string) ([]byte, error) {
	return s.helpers.ReadFile(path)
}

func (s *SdkWrapper) WriteFile(path string, data []byte) error {
	return s.helpers.WriteFile(path, data)
}

func (s *SdkWrapper) ChannelParameter(channel wire.ChannelId, key string) (string, bool) {
	return s.helpers.ChannelParameter(channel, key)
}
