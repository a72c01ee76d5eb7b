package manager

import (
	"time"

	"github.com/race-boat/raceboat/handler"
	"github.com/race-boat/raceboat/wire"
)

// startCleanupLoop starts a background ticker that sweeps expired pending
// callbacks (SPEC_FULL.md 4.12). It returns a function that stops the
// ticker.
func (m *Manager) startCleanupLoop(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				m.h.Post(managerQueue, handler.PriorityIdle, m.runCleanupTick, 0, nil)
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(stop) }
}

// runCleanupTick expires pending receives/reads/accepts that have outlived
// their deadline and pendingWrites older than PendingCallbackTTL.
// Unassociated packages are not swept here. It runs on the manager's own
// handler goroutine.
func (m *Manager) runCleanupTick() {
	now := time.Now()

	for _, r := range m.recvs {
		if r.Pending != nil && r.Pending.IsExpired(now) {
			pc := r.Pending
			r.Pending = nil
			pc.Complete(wire.StatusTimeout, nil)
		}
	}
	for _, cd := range m.conduits {
		if cd.ReadWait != nil && cd.ReadWait.IsExpired(now) {
			pc := cd.ReadWait
			cd.ReadWait = nil
			pc.Complete(wire.StatusTimeout, nil)
		}
	}
	for _, l := range m.listens {
		kept := l.Waiting[:0]
		for _, pc := range l.Waiting {
			if pc.IsExpired(now) {
				pc.Complete(wire.StatusTimeout, nil)
				continue
			}
			kept = append(kept, pc)
		}
		l.Waiting = kept
	}

	// pendingWrites and other infra-internal callbacks are often created
	// with no caller-specified deadline (Deadline.IsZero()) because the
	// blocking operation they back already has its own waitCallback
	// timeout. PendingCallbackTTL is the safety net for the rare case a
	// plugin callback never arrives at all.
	if m.cfg.PendingCallbackTTL > 0 {
		for handle, pc := range m.pendingWrites {
			if pc.Deadline.IsZero() && now.Sub(pc.CreatedAt) > m.cfg.PendingCallbackTTL {
				delete(m.pendingWrites, handle)
				pc.Complete(wire.StatusTimeout, nil)
			}
		}
	}

	// Unassociated packages don't carry individual arrival timestamps in
	// this simplified buffer; a size cap (UnassociatedPackageCap) bounds
	// them instead of a per-entry TTL sweep. See DESIGN.md.
	_ = m.cfg.UnassociatedPkgTTL
}
