package debugsvc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/race-boat/raceboat/observability"
)

// loggingInterceptor logs the start, duration, and result of every RPC.
// Adapted from the teacher's grpc.LoggingInterceptor
// (coreengine/grpc/interceptors.go), generalized from its own local
// Logger interface to observability.Logger.
func loggingInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		dur := time.Since(start)
		if err != nil {
			st, _ := status.FromError(err)
			logger.Error("debugsvc_request_failed",
				"method", info.FullMethod,
				"duration_ms", dur.Milliseconds(),
				"code", st.Code().String(),
				"error", err.Error(),
			)
		} else {
			logger.Debug("debugsvc_request_completed",
				"method", info.FullMethod,
				"duration_ms", dur.Milliseconds(),
			)
		}
		return resp, err
	}
}

// recoveryInterceptor turns a panicking handler into an Internal error
// instead of crashing the process. Adapted from the teacher's
// grpc.RecoveryInterceptor.
func recoveryInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("debugsvc_panic_recovered",
					"method", info.FullMethod,
					"panic", fmt.Sprintf("%v", p),
					"stack", string(debug.Stack()),
				)
				err = status.Errorf(codes.Internal, "panic recovered: %v", p)
			}
		}()
		return handler(ctx, req)
	}
}

// chainUnary composes interceptors left-to-right, the same ordering the
// teacher's grpc.ChainUnaryInterceptors gives.
func chainUnary(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chain
			chain = func(ctx context.Context, req any) (any, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chain(ctx, req)
	}
}

// ServerOptions builds the standard grpc.ServerOption set for a
// DebugService server: recovery, logging, OpenTelemetry span propagation
// (via otelgrpc's stats handler, the same instrumentation
// go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc
// the teacher's go.mod already carried but never wired), and the forced
// JSON codec that lets this service skip generated .proto stubs entirely.
func ServerOptions(logger observability.Logger) []grpc.ServerOption {
	unary := chainUnary(recoveryInterceptor(logger), loggingInterceptor(logger))
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(unary),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ForceServerCodec(jsonCodec{}),
	}
}
