// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the A2A gRPC service.
const ServiceName = "a2a.v1.A2AService"

// Method names of the A2A gRPC service.
const (
	MethodSendMessage          = "SendMessage"
	MethodGetTask              = "GetTask"
	MethodCancelTask           = "CancelTask"
	MethodGetAgentCard         = "GetAgentCard"
	MethodSendStreamingMessage = "SendStreamingMessage"
	MethodTaskSubscription     = "TaskSubscription"
)

// FullMethod returns the full gRPC method name of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// A2AServiceServer is the server API of the A2A gRPC service.
//
// Every request and response is a [structpb.Struct] holding the same JSON
// document the HTTP transports exchange.
type A2AServiceServer interface {
	SendMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAgentCard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendStreamingMessage(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	TaskSubscription(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterA2AServiceServer registers srv on s.
func RegisterA2AServiceServer(s grpc.ServiceRegistrar, srv A2AServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(A2AServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(A2AServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(A2AServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type streamCall func(A2AServiceServer, *structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error

func streamHandler(call streamCall) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(A2AServiceServer), in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
	}
}

// ServiceDesc is the [grpc.ServiceDesc] of the A2A gRPC service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*A2AServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodSendMessage,
			Handler:    unaryHandler(MethodSendMessage, A2AServiceServer.SendMessage),
		},
		{
			MethodName: MethodGetTask,
			Handler:    unaryHandler(MethodGetTask, A2AServiceServer.GetTask),
		},
		{
			MethodName: MethodCancelTask,
			Handler:    unaryHandler(MethodCancelTask, A2AServiceServer.CancelTask),
		},
		{
			MethodName: MethodGetAgentCard,
			Handler:    unaryHandler(MethodGetAgentCard, A2AServiceServer.GetAgentCard),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodSendStreamingMessage,
			Handler:       streamHandler(A2AServiceServer.SendStreamingMessage),
			ServerStreams: true,
		},
		{
			StreamName:    MethodTaskSubscription,
			Handler:       streamHandler(A2AServiceServer.TaskSubscription),
			ServerStreams: true,
		},
	},
	Metadata: "a2a/v1/a2a.proto",
}

// A2AServiceClient is the client API of the A2A gRPC service.
type A2AServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewA2AServiceClient returns a client calling the service over cc.
func NewA2AServiceClient(cc grpc.ClientConnInterface) *A2AServiceClient {
	return &A2AServiceClient{cc: cc}
}

func (c *A2AServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *A2AServiceClient) stream(ctx context.Context, index int, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	desc := &ServiceDesc.Streams[index]
	st, err := c.cc.NewStream(ctx, desc, FullMethod(desc.StreamName), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: st}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SendMessage calls the SendMessage method.
func (c *A2AServiceClient) SendMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSendMessage, in, opts...)
}

// GetTask calls the GetTask method.
func (c *A2AServiceClient) GetTask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetTask, in, opts...)
}

// CancelTask calls the CancelTask method.
func (c *A2AServiceClient) CancelTask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCancelTask, in, opts...)
}

// GetAgentCard calls the GetAgentCard method.
func (c *A2AServiceClient) GetAgentCard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetAgentCard, in, opts...)
}

// SendStreamingMessage calls the SendStreamingMessage method.
func (c *A2AServiceClient) SendStreamingMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.stream(ctx, 0, in, opts...)
}

// TaskSubscription calls the TaskSubscription method.
func (c *A2AServiceClient) TaskSubscription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.stream(ctx, 1, in, opts...)
}
