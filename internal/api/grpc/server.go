// Package grpcapi exposes the control service over gRPC.
package grpcapi

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"speech-to-data/internal/observability"
	"speech-to-data/internal/observability/metrics"
)

const (
	ServiceName  = "speechtodata.v1.Control"
	StatusMethod = "/" + ServiceName + "/Status"
)

// ControlServer is the server API of the control service.
type ControlServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "speechtodata/v1/control.proto",
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterControlServer registers srv on g.
func RegisterControlServer(g grpc.ServiceRegistrar, srv ControlServer) {
	g.RegisterService(&controlServiceDesc, srv)
}

// FetchStatus calls Control/Status on conn.
func FetchStatus(ctx context.Context, conn grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, StatusMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusFunc returns a JSON-compatible status snapshot.
type StatusFunc func() map[string]any

type controlServer struct {
	status StatusFunc
}

func (s *controlServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(s.status())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return st, nil
}

// Server bundles the gRPC server with its health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewServer builds a server with health, reflection, metrics and logging
// interceptors and the control service answering from fn.
func NewServer(fn StatusFunc) *Server {
	m := metrics.DefaultMetrics
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	RegisterControlServer(g, &controlServer{status: fn})
	reflection.Register(g)

	return &Server{grpc: g, health: hs}
}

// Serve listens on port and blocks until the server stops.
func (s *Server) Serve(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on :%s: %w", port, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Shutdown marks the server NOT_SERVING and stops it gracefully.
func (s *Server) Shutdown() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.grpc.GracefulStop()
}
