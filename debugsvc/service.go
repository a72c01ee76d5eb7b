package debugsvc

import (
	"context"

	"github.com/race-boat/raceboat/manager"
	"github.com/race-boat/raceboat/wire"
)

// Service implements the two DebugService RPCs against a live Manager.
type Service struct {
	mgr *manager.Manager
}

// New wraps mgr as a DebugService.
func New(mgr *manager.Manager) *Service {
	return &Service{mgr: mgr}
}

// GetStatus reports context counts by kind, the active channel count, and
// the handle counter's high-water mark.
func (s *Service) GetStatus(ctx context.Context, req *GetStatusRequest) (*StatusResponse, error) {
	snap := s.mgr.Status()
	resp := &StatusResponse{
		ContextsByKind:  make(map[string]int32, len(snap.ContextsByKind)),
		ActiveChannels:  int32(snap.ActiveChannels),
		HandleHighWater: uint64(snap.HandleHighWater),
	}
	for kind, n := range snap.ContextsByKind {
		resp.ContextsByKind[string(kind)] = int32(n)
	}
	return resp, nil
}

// ListContexts returns a page of (handle, kind, state) tuples for
// debugging contexts that appear stuck.
func (s *Service) ListContexts(ctx context.Context, req *ListContextsRequest) (*ListContextsResponse, error) {
	rows := s.mgr.ListContexts(wire.RaceHandle(req.AfterHandle), int(req.Limit))
	resp := &ListContextsResponse{Contexts: make([]ContextRow, len(rows))}
	for i, r := range rows {
		resp.Contexts[i] = ContextRow{
			Handle: uint64(r.Handle),
			Kind:   string(r.Kind),
			State:  r.State,
		}
	}
	return resp, nil
}
