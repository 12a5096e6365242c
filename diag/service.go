// Package diag exposes the running session over gRPC for status polling and
// remote reset. Messages are well-known protobuf types so no generated code
// is needed on either side.
package diag

import (
	"context"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"nesra/session"
)

const ServiceName = "nesra.diag.Diagnostics"

const DefaultListen = "127.0.0.1:27638"

const (
	methodStatus = "/" + ServiceName + "/Status"
	methodReset  = "/" + ServiceName + "/Reset"
)

// Target is what the service reports on and controls.
type Target interface {
	Status(ctx context.Context) (session.Status, error)
	Reset(ctx context.Context) error
}

// SessionTarget runs calls on s's own goroutine via Do.
func SessionTarget(s *session.Session) Target { return sessionTarget{s} }

type sessionTarget struct{ s *session.Session }

func (t sessionTarget) Status(ctx context.Context) (st session.Status, err error) {
	err = t.s.Do(ctx, func(s *session.Session) { st = s.Status() })
	return
}

func (t sessionTarget) Reset(ctx context.Context) error {
	return t.s.Do(ctx, func(s *session.Session) { s.Reset() })
}

type diagServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

type service struct {
	t Target
}

func (d *service) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := d.t.Status(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	s, err := StatusStruct(st)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func (d *service) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	log.Printf("diag: reset requested\n")
	if err := d.t.Reset(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(diagServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStatus}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(diagServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(diagServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReset}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(diagServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*diagServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Reset", Handler: resetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nesra/diag",
}

// Register adds the diagnostics service for t to gs.
func Register(gs *grpc.Server, t Target) {
	gs.RegisterService(&serviceDesc, &service{t: t})
}

type Server struct {
	gs  *grpc.Server
	lis net.Listener
}

// Listen binds addr; call Serve to start answering.
func Listen(addr string, t Target) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	Register(gs, t)
	return &Server{gs: gs, lis: lis}, nil
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	log.Printf("diag: listening on %s\n", s.lis.Addr())
	return s.gs.Serve(s.lis)
}

func (s *Server) Stop() {
	s.gs.GracefulStop()
}
