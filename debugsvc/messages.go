// Package debugsvc is the introspection gRPC service described in
// SPEC_FULL.md 6.1: two read-only RPCs exposing the manager's context
// counts and a page of in-flight contexts, for operators debugging a
// stuck Race instance. It is deliberately not part of the plugin
// contract (spec.md 6 is explicit that plugins are an in-process Go
// interface, not a wire protocol) — this is purely ambient operational
// surface, the Go-core analogue of the teacher's sidecar gRPC server
// (coreengine/grpc.EngineServer).
package debugsvc

// GetStatusRequest carries no fields; GetStatus always reports the
// calling manager's full snapshot.
type GetStatusRequest struct{}

// StatusResponse is GetStatus's payload.
type StatusResponse struct {
	ContextsByKind  map[string]int32 `json:"contexts_by_kind"`
	ActiveChannels  int32            `json:"active_channels"`
	HandleHighWater uint64           `json:"handle_high_water"`
}

// ListContextsRequest pages through the manager's contexts, ordered by
// handle. AfterHandle of 0 starts from the beginning; Limit of 0 means
// unbounded (the manager returns everything in one page).
type ListContextsRequest struct {
	AfterHandle uint64 `json:"after_handle"`
	Limit       int32  `json:"limit"`
}

// ContextRow is one (handle, kind, state) tuple.
type ContextRow struct {
	Handle uint64 `json:"handle"`
	Kind   string `json:"kind"`
	State  string `json:"state"`
}

// ListContextsResponse is ListContexts's payload.
type ListContextsResponse struct {
	Contexts []ContextRow `json:"contexts"`
}
