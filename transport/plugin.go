// Package transport defines the plugin-facing contract (SPEC_FULL.md 6):
// the synchronous calls the core issues into a transport plugin, the
// callbacks a plugin issues back, and the PluginWrapper/SdkWrapper pair
// that adapts a plugin's own threading model onto the core's handler.
package transport

import (
	"time"

	"github.com/race-boat/raceboat/wire"
)

// SdkResponse is returned by every outbound call into a plugin.
type SdkResponse struct {
	Status           wire.ApiStatus
	QueueUtilization float64
	Handle           wire.RaceHandle
}

// Plugin is the contract a transport plugin implements. Every method is
// invoked on the plugin's own handler thread (via PluginWrapper) and is
// expected to return quickly; plugins report the outcome of longer-running
// work asynchronously through Callbacks.
type Plugin interface {
	Init(config map[string]any) error
	Shutdown() error

	ActivateChannel(handle wire.RaceHandle, channel wire.ChannelId, role string) SdkResponse
	DeactivateChannel(handle wire.RaceHandle, channel wire.ChannelId) SdkResponse

	CreateLink(handle wire.RaceHandle, channel wire.ChannelId) SdkResponse
	CreateLinkFromAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) SdkResponse
	LoadLinkAddress(handle wire.RaceHandle, channel wire.ChannelId, address string) SdkResponse
	LoadLinkAddresses(handle wire.RaceHandle, channel wire.ChannelId, addresses []string) SdkResponse
	DestroyLink(handle wire.RaceHandle, link wire.LinkId) SdkResponse

	OpenConnection(handle wire.RaceHandle, dir wire.ConnectionDirection, link wire.LinkId, linkHints string, priority int, sendTimeout, timeout time.Duration) SdkResponse
	CloseConnection(handle wire.RaceHandle, conn wire.ConnectionId, timeout time.Duration) SdkResponse

	SendPackage(handle wire.RaceHandle, conn wire.ConnectionId, encPkg []byte, timeout time.Duration, batchId string) SdkResponse
	FlushChannel(handle wire.RaceHandle, channel wire.ChannelId, batchId string, timeout time.Duration) SdkResponse

	OnUserInputReceived(handle wire.RaceHandle, answered bool, response string, timeout time.Duration) SdkResponse
}

// Callbacks is the plugin's view back into the core (the SDK facade),
// SPEC_FULL.md 4.3. The manager implements ManagerCallbacks; SdkWrapper
// adapts that onto this plugin-visible shape, tagging every call with the
// plugin's own identifier so per-plugin isolation is preserved.
type Callbacks interface {
	OnChannelStatusChanged(handle wire.RaceHandle, channel wire.ChannelId, status wire.ChannelStatus, props map[string]any, timeout time.Duration) SdkResponse
	OnLinkStatusChanged(handle wire.RaceHandle, link wire.LinkId, status wire.LinkStatus, props map[string]any, timeout time.Duration) SdkResponse
	OnConnectionStatusChanged(handle wire.RaceHandle, conn wire.ConnectionId, status wire.ConnectionStatus, linkProps map[string]any, timeout time.Duration) SdkResponse
	OnPackageStatusChanged(handle wire.RaceHandle, status wire.PackageStatus, timeout time.Duration) SdkResponse
	ReceiveEncPkg(pkg []byte, connIds []wire.ConnectionId, timeout time.Duration) SdkResponse

	UpdateLinkProperties(link wire.LinkId, props map[string]any, timeout time.Duration) SdkResponse
	GenerateConnectionId(link wire.LinkId) wire.ConnectionId
	GenerateLinkId(channel wire.ChannelId) wire.LinkId

	RequestPluginUserInput(key, prompt string, cache bool) SdkResponse
	RequestCommonUserInput(key string) SdkResponse
	UnblockQueue(conn wire.ConnectionId) SdkResponse
}

// Helpers exposes the SDK wrapper's non-context-touching delegated
// collaborators (SPEC_FULL.md 4.3): entropy, persona, filesystem,
// channel-parameter lookup, user-input prompting. Each is an external
// collaborator the core consumes through a small interface, never owns.
type Helpers interface {
	Entropy(numBytes int) ([]byte, error)
	Persona() string
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	ChannelParameter(channel wire.ChannelId, key string) (string, bool)
	RequestUserInput(prompt string) (string, error)
}
