// Package remote serves an inference.Engine over gRPC and provides a
// client that satisfies inference.Engine, so the classifier can run on a
// host without the model runtime.
package remote

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

const (
	serviceName     = "fallwatch.inference.v1.Engine"
	methodInputSpec = "/" + serviceName + "/InputSpec"
	methodInvoke    = "/" + serviceName + "/Invoke"
)

// InputSpecRequest is empty; the server has exactly one engine.
type InputSpecRequest struct{}

// InvokeRequest carries one input tensor.
type InvokeRequest struct {
	Input *inference.Tensor `json:"input"`
}

// InvokeResponse carries the raw model outputs.
type InvokeResponse struct {
	Outputs []*inference.Tensor `json:"outputs"`
}

// Server exposes a local engine. Invocations are serialized because model
// interpreters are generally not safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	engine inference.Engine
}

// NewServer wraps engine.
func NewServer(engine inference.Engine) *Server {
	return &Server{engine: engine}
}

// NewGRPCServer returns a grpc.Server with the JSON codec forced, a receive
// limit sized for the engine's input, and s registered. Later opts win.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.MaxRecvMsgSize(MaxMessageSize(s.engine.InputSpec())),
	}, opts...)
	gs := grpc.NewServer(opts...)
	Register(gs, s)
	return gs
}

// Register attaches s to gs. gs must use the JSON codec.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) inputSpec(ctx context.Context, _ *InputSpecRequest) (*inference.TensorSpec, error) {
	spec := s.engine.InputSpec()
	return &spec, nil
}

func (s *Server) invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	if req.Input == nil {
		return nil, status.Error(codes.InvalidArgument, "missing input tensor")
	}
	if err := req.Input.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input tensor: %v", err)
	}
	spec := s.engine.InputSpec()
	if !spec.Matches(req.Input) {
		return nil, status.Errorf(codes.InvalidArgument, "input shape %v %s does not match engine %v %s",
			req.Input.Shape, req.Input.Type, spec.Shape, spec.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	outputs, err := s.engine.Invoke(ctx, req.Input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, status.FromContextError(ctxErr).Err()
		}
		monitoring.Logf("remote: engine invoke failed: %v", err)
		return nil, status.Errorf(codes.Internal, "engine invoke: %v", err)
	}
	return &InvokeResponse{Outputs: outputs}, nil
}

func inputSpecHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InputSpecRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.inputSpec(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInputSpec}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.inputSpec(ctx, req.(*InputSpecRequest))
	})
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInvoke}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.invoke(ctx, req.(*InvokeRequest))
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InputSpec", Handler: inputSpecHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Metadata: "fallwatch/inference.json",
}
