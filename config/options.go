package config

import (
	"fmt"
	"time"

	"github.com/race-boat/raceboat/wire"
)

// SendOptions configures a fire-and-forget send.
type SendOptions struct {
	SendChannel wire.ChannelId
	SendRole    string
	SendAddress string
	AltChannel  wire.ChannelId
	TimeoutMs   int
}

// Validate checks the argument-error cases called out in SPEC_FULL.md 7:
// missing/empty channel, role, address, or payload.
func (o SendOptions) Validate(payload []byte) error {
	if o.SendChannel == "" {
		return fmt.Errorf("%w: send_channel is required", ErrChannelInvalid)
	}
	if o.SendRole == "" {
		return fmt.Errorf("%w: send_role is required", ErrInvalidArgument)
	}
	if o.SendAddress == "" {
		return fmt.Errorf("%w: send_address is required", ErrInvalidArgument)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload must not be empty", ErrInvalidArgument)
	}
	return nil
}

// Timeout returns TimeoutMs as a time.Duration, zero meaning "no timeout".
func (o SendOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// ReceiveOptions configures a receive() / receive_respond() listener.
type ReceiveOptions struct {
	RecvChannel wire.ChannelId
	RecvRole    string
	MultiChannel bool
	TimeoutMs   int
}

func (o ReceiveOptions) Validate() error {
	if o.RecvChannel == "" {
		return fmt.Errorf("%w: recv_channel is required", ErrChannelInvalid)
	}
	if o.RecvRole == "" {
		return fmt.Errorf("%w: recv_role is required", ErrInvalidArgument)
	}
	return nil
}

func (o ReceiveOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// SendReceiveOptions configures a request/reply round trip.
type SendReceiveOptions struct {
	SendChannel wire.ChannelId
	RecvChannel wire.ChannelId
	SendRole    string
	RecvRole    string
	SendAddress string
	TimeoutMs   int
}

func (o SendReceiveOptions) Validate(payload []byte) error {
	if o.SendChannel == "" || o.RecvChannel == "" {
		return fmt.Errorf("%w: send_channel and recv_channel are required", ErrChannelInvalid)
	}
	if o.SendRole == "" || o.RecvRole == "" {
		return fmt.Errorf("%w: send_role and recv_role are required", ErrInvalidArgument)
	}
	if o.SendAddress == "" {
		return fmt.Errorf("%w: send_address is required", ErrInvalidArgument)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload must not be empty", ErrInvalidArgument)
	}
	return nil
}

func (o SendReceiveOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// ListenOptions configures a listen().
type ListenOptions struct {
	SendChannel wire.ChannelId
	RecvChannel wire.ChannelId
	SendRole    string
	RecvRole    string
}

func (o ListenOptions) Validate() error {
	if o.RecvChannel == "" {
		return fmt.Errorf("%w: recv_channel is required", ErrChannelInvalid)
	}
	if o.RecvRole == "" {
		return fmt.Errorf("%w: recv_role is required", ErrInvalidArgument)
	}
	return nil
}

// DialOptions configures a dial().
type DialOptions struct {
	SendChannel wire.ChannelId
	RecvChannel wire.ChannelId
	SendRole    string
	RecvRole    string
	SendAddress string
	TimeoutMs   int
}

func (o DialOptions) Validate() error {
	if o.SendChannel == "" || o.RecvChannel == "" {
		return fmt.Errorf("%w: send_channel and recv_channel are required", ErrChannelInvalid)
	}
	if o.SendRole == "" || o.RecvRole == "" {
		return fmt.Errorf("%w: send_role and recv_role are required", ErrInvalidArgument)
	}
	if o.SendAddress == "" {
		return fmt.Errorf("%w: send_address is required", ErrInvalidArgument)
	}
	return nil
}

// ResumeOptions restarts a conduit across process boundaries without a
// handshake. PackageId may be supplied as raw bytes or base64.
type ResumeOptions struct {
	SendChannel   wire.ChannelId
	RecvChannel   wire.ChannelId
	SendAddress   string
	RecvAddress   string
	PackageIdRaw  []byte
	PackageIdB64  string
}

func (o ResumeOptions) Validate() error {
	if o.SendChannel == "" || o.RecvChannel == "" {
		return fmt.Errorf("%w: send_channel and recv_channel are required", ErrChannelInvalid)
	}
	if o.SendAddress == "" || o.RecvAddress == "" {
		return fmt.Errorf("%w: send_address and recv_address are required", ErrInvalidArgument)
	}
	if len(o.PackageIdRaw) == 0 && o.PackageIdB64 == "" {
		return fmt.Errorf("%w: a packageId (raw or base64) is required", ErrInvalidArgument)
	}
	return nil
}

// BootstrapOptions configures the Bootstrap{Listen,Dial} two-channel flavors.
type BootstrapOptions struct {
	InitSendChannel  wire.ChannelId
	InitRecvChannel  wire.ChannelId
	FinalSendChannel wire.ChannelId
	FinalRecvChannel wire.ChannelId
	SendRole         string
	RecvRole         string
	SendAddress      string // only for BootstrapDial
	TimeoutMs        int
}

func (o BootstrapOptions) Validate() error {
	if o.InitRecvChannel == "" || o.FinalRecvChannel == "" {
		return fmt.Errorf("%w: init and final recv channels are required", ErrChannelInvalid)
	}
	if o.RecvRole == "" {
		return fmt.Errorf("%w: recv_role is required", ErrInvalidArgument)
	}
	return nil
}

func (o BootstrapOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}
