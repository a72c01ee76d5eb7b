// Package wire defines the identifiers, handshake envelope codec, and
// status taxonomy shared by every other package in the core.
package wire

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ChannelId names a transport channel (e.g. "twoSixDirectCpp").
type ChannelId string

// LinkId names one link within a channel, minted by the owning plugin.
type LinkId string

// ConnectionId names one open connection on a link, minted by the owning plugin.
type ConnectionId string

// PackageId is the 16-byte tag prefixed to every package on a conduit.
type PackageId [16]byte

// RaceHandle is a 64-bit monotone value minted by the core; every
// asynchronous request carries one so the reply can be matched back to it.
type RaceHandle uint64

// NullHandle is never issued by HandleGenerator; it marks "no handle".
const NullHandle RaceHandle = 0

// HandleGenerator mints unique RaceHandles for one Race instance. Kept as
// an instance, not a package-level global, per the scoping rule that the
// only process-wide state allowed is owned by the Race object itself.
type HandleGenerator struct {
	counter uint64
}

// Next returns the next handle, starting at 1.
func (g *HandleGenerator) Next() RaceHandle {
	return RaceHandle(atomic.AddUint64(&g.counter, 1))
}

// Current returns the most recently minted handle (0 if none yet), for
// introspection/debugging callers that want a high-water mark without
// minting a new handle themselves.
func (g *HandleGenerator) Current() RaceHandle {
	return RaceHandle(atomic.LoadUint64(&g.counter))
}

// NewLinkId mints an opaque, globally-unique link identifier. Plugins are
// free to mint their own; this generator exists for plugins (and the
// loopback test transport) that ask the core to pick one for them.
func NewLinkId(channel ChannelId) LinkId {
	return LinkId(string(channel) + "/" + uuid.NewString())
}

// NewConnectionId mints an opaque, globally-unique connection identifier.
func NewConnectionId(link LinkId) ConnectionId {
	return ConnectionId(string(link) + "/" + uuid.NewString())
}

// NewPackageId mints a random 16-byte package id from a UUIDv4's bytes.
func NewPackageId() PackageId {
	var id PackageId
	copy(id[:], uuid.New()[:])
	return id
}

// ZeroPackageId is the well-known prefix a Listen registers to receive
// unsolicited hello envelopes on.
var ZeroPackageId PackageId

// IsZero reports whether this is the well-known hello-demultiplexing prefix.
func (p PackageId) IsZero() bool {
	return p == ZeroPackageId
}
