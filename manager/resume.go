package manager

import (
	"encoding/base64"
	"errors"

	"github.com/race-boat/raceboat/apictx"
	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/wire"
)

var errBadPackageId = errors.New("manager: packageId must decode to 16 bytes")

// Resume restarts a conduit from already-known link addresses and a
// already-known packageId, without exchanging a hello (SPEC_FULL.md 4.7).
func (m *Manager) Resume(opts config.ResumeOptions) (wire.ApiStatus, wire.RaceHandle) {
	if err := opts.Validate(); err != nil {
		return statusForErr(err), wire.NullHandle
	}
	packageId, err := resolvePackageId(opts)
	if err != nil {
		return wire.StatusInvalidArgument, wire.NullHandle
	}

	pc := apictx.NewPendingCallback(0)
	var handle wire.RaceHandle

	m.runSync(func() {
		handle = m.nextHandle()
		r := &apictx.Resume{Handle: handle, Opts: opts, State: apictx.OpInitial, PackageId: packageId}
		m.resumes[handle] = r
		m.metrics.ContextsCreated.WithLabelValues("resume").Inc()

		recvConn, err := m.acquireConnection(opts.RecvChannel, "default", opts.RecvAddress, wire.DirRecv, handle)
		if err != nil {
			pc.Complete(wire.StatusChannelInvalid, nil)
			return
		}
		r.RecvHandle = recvConn.Handle

		m.whenConnected(recvConn, func() {
			sendConn, err := m.acquireConnection(opts.SendChannel, "default", opts.SendAddress, wire.DirSend, handle)
			if err != nil {
				pc.Complete(wire.StatusChannelInvalid, nil)
				return
			}
			r.SendHandle = sendConn.Handle

			m.whenConnected(sendConn, func() {
				conduitHandle := m.nextHandle()
				cd := &apictx.Conduit{
					Handle:     conduitHandle,
					PackageId:  packageId,
					SendHandle: sendConn.Handle,
					RecvHandle: recvConn.Handle,
					WriteWaits: make(map[wire.RaceHandle]*apictx.PendingCallback),
				}
				m.conduits[conduitHandle] = cd
				m.packageIdIndex[packageId] = conduitHandle
				m.reattachDependent(recvConn.Handle, handle, conduitHandle)
				m.reattachDependent(sendConn.Handle, handle, conduitHandle)
				m.drainUnassociated(recvConn.ConnId)
				delete(m.resumes, handle)
				m.metrics.ContextsActive.WithLabelValues("conduit").Inc()
				m.metrics.ContextsCreated.WithLabelValues("conduit").Inc()

				pc.Complete(wire.StatusOK, conduitHandle)
			})
		})
	})

	status, result := m.waitCallback(pc, 0)
	conduitHandle, _ := result.(wire.RaceHandle)
	return status, conduitHandle
}

func resolvePackageId(opts config.ResumeOptions) (wire.PackageId, error) {
	var id wire.PackageId
	if len(opts.PackageIdRaw) == 16 {
		copy(id[:], opts.PackageIdRaw)
		return id, nil
	}
	raw, err := base64.StdEncoding.DecodeString(opts.PackageIdB64)
	if err != nil || len(raw) != 16 {
		return id, errBadPackageId
	}
	copy(id[:], raw)
	return id, nil
}
