package config

import "errors"

// Sentinel validation errors, mapped to wire.ApiStatus by the manager at
// the point a public call returns synchronously (SPEC_FULL.md 7).
var (
	ErrChannelInvalid  = errors.New("channel invalid")
	ErrInvalidArgument = errors.New("invalid argument")
)
