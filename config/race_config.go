package config

import "time"

// RaceConfig holds the core's top-level configuration: queue sizing,
// default timeouts, and the optional cleanup tick described in
// SPEC_FULL.md 4.12. None of it is infrastructure configuration — channel
// parameters, plugin manifests, and the filesystem/key-value store the
// plugins read from are external collaborators the core never configures
// directly (SPEC_FULL.md 1).
type RaceConfig struct {
	// Queueing
	PerConnectionQueueDepth int `json:"per_connection_queue_depth"`
	UnassociatedPackageCap  int `json:"unassociated_package_cap"`

	// Timeouts
	DefaultOperationTimeoutMs int `json:"default_operation_timeout_ms"`

	// Cleanup (SPEC_FULL.md 4.12). Zero disables the periodic tick.
	CleanupInterval      time.Duration `json:"cleanup_interval"`
	PendingCallbackTTL   time.Duration `json:"pending_callback_ttl"`
	UnassociatedPkgTTL   time.Duration `json:"unassociated_pkg_ttl"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultRaceConfig returns a RaceConfig with default values.
func DefaultRaceConfig() *RaceConfig {
	return &RaceConfig{
		PerConnectionQueueDepth:   64,
		UnassociatedPackageCap:    256,
		DefaultOperationTimeoutMs: 0, // no timeout
		CleanupInterval:           0, // disabled unless the caller opts in
		PendingCallbackTTL:        5 * time.Minute,
		UnassociatedPkgTTL:        5 * time.Minute,
		LogLevel:                  "INFO",
	}
}

// ChannelParameters wraps a raw map[string]any of channel parameters (as
// supplied by the application's key/value parameter store, an external
// collaborator per SPEC_FULL.md 1) with typed lookups. A missing key or a
// value of the wrong type yields the caller's fallback, mirroring
// CoreConfigFromMap's tolerant decoding.
type ChannelParameters map[string]any

func (p ChannelParameters) String(key, fallback string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func (p ChannelParameters) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func (p ChannelParameters) Bool(key string, fallback bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}
