package debugsvc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/race-boat/raceboat/manager"
	"github.com/race-boat/raceboat/observability"
)

// Server bundles a *grpc.Server pre-registered with a DebugService, the
// same shape as the teacher's GracefulServer
// (coreengine/grpc/server.go), trimmed to what a read-only introspection
// sidecar needs: start, and stop.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	logger     observability.Logger
}

// NewServer builds a DebugService gRPC server bound to mgr but does not
// start listening yet.
func NewServer(mgr *manager.Manager, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	gs := grpc.NewServer(ServerOptions(logger)...)
	RegisterDebugServiceServer(gs, New(mgr))
	return &Server{grpcServer: gs, logger: logger}
}

// Start binds addr and serves in a background goroutine. Call Stop to
// shut down gracefully.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("debugsvc: listen %s: %w", addr, err)
	}
	s.listener = lis
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("debugsvc_server_stopped", "error", err.Error())
		}
	}()
	s.logger.Info("debugsvc_server_started", "address", lis.Addr().String())
	return nil
}

// Addr returns the bound listener's address; only valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server, waiting for in-flight RPCs to finish.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
