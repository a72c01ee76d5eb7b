package manager

import (
	"errors"
	"time"

	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// statusForErr maps a config.Options.Validate() error to the wire status
// taxonomy (SPEC_FULL.md 7): a channel-shaped problem reports
// CHANNEL_INVALID, anything else reports INVALID_ARGUMENT.
func statusForErr(err error) wire.ApiStatus {
	if err == nil {
		return wire.StatusOK
	}
	if errors.Is(err, config.ErrChannelInvalid) {
		return wire.StatusChannelInvalid
	}
	return wire.StatusInvalidArgument
}
