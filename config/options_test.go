package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/race-boat/raceboat/wire"
)

func TestSendOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    SendOptions
		payload []byte
		wantErr error
	}{
		{
			name:    "valid",
			opts:    SendOptions{SendChannel: "T", SendRole: "default", SendAddress: "A"},
			payload: []byte("hi"),
			wantErr: nil,
		},
		{
			name:    "missing channel",
			opts:    SendOptions{SendRole: "default", SendAddress: "A"},
			payload: []byte("hi"),
			wantErr: ErrChannelInvalid,
		},
		{
			name:    "missing role",
			opts:    SendOptions{SendChannel: "T", SendAddress: "A"},
			payload: []byte("hi"),
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "missing address",
			opts:    SendOptions{SendChannel: "T", SendRole: "default"},
			payload: []byte("hi"),
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "empty payload",
			opts:    SendOptions{SendChannel: "T", SendRole: "default", SendAddress: "A"},
			payload: nil,
			wantErr: ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate(tt.payload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestResumeOptionsValidate(t *testing.T) {
	base := ResumeOptions{SendChannel: "T", RecvChannel: "T", SendAddress: "A", RecvAddress: "B"}
	assert.Error(t, base.Validate())

	withRaw := base
	withRaw.PackageIdRaw = []byte("0123456789ABCDEF")
	assert.NoError(t, withRaw.Validate())

	withB64 := base
	withB64.PackageIdB64 = "MDEyMzQ1Njc4OUFCQ0RFRg=="
	assert.NoError(t, withB64.Validate())
}

func TestChannelEntryCanAccept(t *testing.T) {
	assert.True(t, ChannelEntry{Status: wire.ChannelAvailable}.CanAccept())
	assert.False(t, ChannelEntry{Status: wire.ChannelStarting}.CanAccept())
}

func TestChannelParameters(t *testing.T) {
	p := ChannelParameters{"port": float64(9999), "host": "localhost", "tls": true}
	assert.Equal(t, 9999, p.Int("port", 0))
	assert.Equal(t, "localhost", p.String("host", ""))
	assert.True(t, p.Bool("tls", false))
	assert.Equal(t, "fallback", p.String("missing", "fallback"))
}
