package debugsvc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceDesc is the hand-rolled equivalent of what protoc-gen-go-grpc
// would emit from a .proto file (SPEC_FULL.md 6.1 explains why none is
// checked in): a ServiceName, a HandlerType assertion, and one MethodDesc
// per RPC, each unmarshalling through the "json" codec registered in
// codec.go rather than a generated protobuf message.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "raceboat.debug.DebugService",
	HandlerType: (*debugServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
		{
			MethodName: "ListContexts",
			Handler:    listContextsHandler,
		},
	},
	Metadata: "debugsvc.proto",
}

// debugServiceServer is the interface grpc.ServiceDesc's HandlerType
// names; *Service satisfies it.
type debugServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*StatusResponse, error)
	ListContexts(context.Context, *ListContextsRequest) (*ListContextsResponse, error)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(debugServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceDesc.ServiceName + "/GetStatus",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(debugServiceServer).GetStatus(ctx, req.(*GetStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listContextsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListContextsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(debugServiceServer).ListContexts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceDesc.ServiceName + "/ListContexts",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(debugServiceServer).ListContexts(ctx, req.(*ListContextsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterDebugServiceServer registers srv against gs, the same call
// shape a generated pb.RegisterXServer function would have (teacher:
// pb.RegisterEngineServiceServer in coreengine/grpc/server.go).
func RegisterDebugServiceServer(gs grpc.ServiceRegistrar, srv *Service) {
	gs.RegisterService(&serviceDesc, srv)
}
