package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope is the handshake carried as the first package of any
// bidirectional flow. JSON-encoded UTF-8 bytes, no length prefix.
type Envelope struct {
	LinkAddress  string    `json:"linkAddress"`
	ReplyChannel ChannelId `json:"replyChannel"`
	PackageId    PackageId `json:"packageId"`
	Message      []byte    `json:"message"`

	// TraceId/SpanId carry the originating OTel span's correlation IDs
	// across the wire, "for compatibility with RACE" the way the
	// original EncPkg carries its own traceId/spanId fields ahead of
	// the cipher text (SPEC_FULL.md 3.1). Zero when no span was active.
	TraceId uint64 `json:"traceId,omitempty"`
	SpanId  uint64 `json:"spanId,omitempty"`

	// Bootstrap fields. Omitted (zero value) for plain Dial/Listen hellos;
	// present when this hello is exchanging final-channel addresses for a
	// BootstrapDial/BootstrapListen pair (SPEC_FULL.md 4.8).
	InitSendLinkAddress  string    `json:"initSendLinkAddress,omitempty"`
	InitSendChannel      ChannelId `json:"initSendChannel,omitempty"`
	InitRecvLinkAddress  string    `json:"initRecvLinkAddress,omitempty"`
	InitRecvChannel      ChannelId `json:"initRecvChannel,omitempty"`
	FinalSendLinkAddress string    `json:"finalSendLinkAddress,omitempty"`
	FinalSendChannel     ChannelId `json:"finalSendChannel,omitempty"`
	FinalRecvLinkAddress string    `json:"finalRecvLinkAddress,omitempty"`
	FinalRecvChannel     ChannelId `json:"finalRecvChannel,omitempty"`
}

// envelopeWire is the JSON-on-the-wire shape: packageId and message are
// base64 strings, not Go byte arrays.
type envelopeWire struct {
	LinkAddress          string `json:"linkAddress"`
	ReplyChannel         string `json:"replyChannel"`
	PackageId            string `json:"packageId"`
	Message              string `json:"message"`
	InitSendLinkAddress  string `json:"initSendLinkAddress,omitempty"`
	InitSendChannel      string `json:"initSendChannel,omitempty"`
	InitRecvLinkAddress  string `json:"initRecvLinkAddress,omitempty"`
	InitRecvChannel      string `json:"initRecvChannel,omitempty"`
	FinalSendLinkAddress string `json:"finalSendLinkAddress,omitempty"`
	FinalSendChannel     string `json:"finalSendChannel,omitempty"`
	FinalRecvLinkAddress string `json:"finalRecvLinkAddress,omitempty"`
	FinalRecvChannel     string `json:"finalRecvChannel,omitempty"`
	TraceId              uint64 `json:"traceId,omitempty"`
	SpanId               uint64 `json:"spanId,omitempty"`
}

// EncodeEnvelope renders an Envelope as the JSON bytes sent on the wire.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	w := envelopeWire{
		LinkAddress:          e.LinkAddress,
		ReplyChannel:         string(e.ReplyChannel),
		PackageId:            base64.StdEncoding.EncodeToString(e.PackageId[:]),
		Message:              base64.StdEncoding.EncodeToString(e.Message),
		InitSendLinkAddress:  e.InitSendLinkAddress,
		InitSendChannel:      string(e.InitSendChannel),
		InitRecvLinkAddress:  e.InitRecvLinkAddress,
		InitRecvChannel:      string(e.InitRecvChannel),
		FinalSendLinkAddress: e.FinalSendLinkAddress,
		FinalSendChannel:     string(e.FinalSendChannel),
		FinalRecvLinkAddress: e.FinalRecvLinkAddress,
		FinalRecvChannel:     string(e.FinalRecvChannel),
		TraceId:              e.TraceId,
		SpanId:               e.SpanId,
	}
	return json.Marshal(w)
}

// DecodeEnvelope parses wire bytes into an Envelope. Parsing is total:
// malformed input returns an error and no partial Envelope is produced,
// per invariant 7 (SPEC_FULL.md 8).
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, fmt.Errorf("wire: malformed envelope: %w", err)
	}
	pkgId, err := base64.StdEncoding.DecodeString(w.PackageId)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: bad packageId base64: %w", err)
	}
	if len(pkgId) != 16 {
		return Envelope{}, fmt.Errorf("wire: packageId must be 16 bytes, got %d", len(pkgId))
	}
	msg, err := base64.StdEncoding.DecodeString(w.Message)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: bad message base64: %w", err)
	}
	e := Envelope{
		LinkAddress:          w.LinkAddress,
		ReplyChannel:         ChannelId(w.ReplyChannel),
		Message:              msg,
		InitSendLinkAddress:  w.InitSendLinkAddress,
		InitSendChannel:      ChannelId(w.InitSendChannel),
		InitRecvLinkAddress:  w.InitRecvLinkAddress,
		InitRecvChannel:      ChannelId(w.InitRecvChannel),
		FinalSendLinkAddress: w.FinalSendLinkAddress,
		FinalSendChannel:     ChannelId(w.FinalSendChannel),
		FinalRecvLinkAddress: w.FinalRecvLinkAddress,
		FinalRecvChannel:     ChannelId(w.FinalRecvChannel),
		TraceId:              w.TraceId,
		SpanId:               w.SpanId,
	}
	copy(e.PackageId[:], pkgId)
	return e, nil
}

// FramePackage prefixes payload with a packageId: every subsequent
// package on a conduit is packageId (16 raw bytes) || payload.
func FramePackage(id PackageId, payload []byte) []byte {
	out := make([]byte, 16+len(payload))
	copy(out, id[:])
	copy(out[16:], payload)
	return out
}

// ParsePackage splits a raw inbound package into its packageId prefix and
// payload. Returns an error if the package is shorter than the prefix.
func ParsePackage(raw []byte) (PackageId, []byte, error) {
	if len(raw) < 16 {
		return PackageId{}, nil, fmt.Errorf("wire: package shorter than 16-byte packageId prefix")
	}
	var id PackageId
	copy(id[:], raw[:16])
	return id, raw[16:], nil
}
