// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package grpcserver serves the A2A protocol over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server"
	"github.com/go-a2a/a2a-server/server/handler"
)

// Config holds configuration for the gRPC server.
type Config struct {
	// Handler handles the A2A requests.
	Handler handler.RequestHandler
	// Agent is advertised in the agent card.
	Agent server.AgentInfo
	// Interfaces are advertised as additional interfaces of the agent card.
	Interfaces []a2a.AgentInterface
	// Metrics records served requests. Defaults to [metrics.Nop].
	Metrics metrics.Recorder
	// ServerOptions are appended to the options of the underlying [grpc.Server].
	ServerOptions []grpc.ServerOption
}

// Server is the gRPC [server.ProtocolServer].
type Server struct {
	*server.Lifecycle

	handler    handler.RequestHandler
	agent      server.AgentInfo
	interfaces []a2a.AgentInterface
	metrics    metrics.Recorder
	logger     *slog.Logger
	opts       []grpc.ServerOption

	mu  sync.Mutex
	srv *grpc.Server
}

var (
	_ server.ProtocolServer = (*Server)(nil)
	_ A2AServiceServer      = (*Server)(nil)
)

// NewServer returns a gRPC server for cfg.
func NewServer(cfg Config, opts ...server.Option) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("request handler is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}

	s := &Server{
		Lifecycle:  server.NewLifecycleFromOptions(server.ProtocolGRPC, opts...),
		handler:    cfg.Handler,
		agent:      cfg.Agent,
		interfaces: cfg.Interfaces,
		metrics:    cfg.Metrics,
		opts:       cfg.ServerOptions,
	}
	s.logger = s.Logger()
	return s, nil
}

// Register registers the A2A service on reg.
func (s *Server) Register(reg grpc.ServiceRegistrar) {
	RegisterA2AServiceServer(reg, s)
}

// Start implements [server.ProtocolServer].
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsRunning() {
		s.logger.WarnContext(ctx, "server is already running", "port", s.Port())
		return nil
	}

	opts := append([]grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(recoverUnary(s.logger)),
		grpc.ChainStreamInterceptor(recoverStream(s.logger)),
	}, s.opts...)
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	s.srv = gs

	return s.Run(ctx, func(lis net.Listener) error {
		if err := gs.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
}

// Stop implements [server.ProtocolServer]. Streams still open when ctx is
// done are closed forcibly.
func (s *Server) Stop(ctx context.Context) error {
	return s.Shutdown(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		gs := s.srv
		s.mu.Unlock()
		if gs == nil {
			return nil
		}

		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			gs.Stop()
		}
		return nil
	})
}

// AgentCard returns the agent card of this server.
func (s *Server) AgentCard() *a2a.AgentCard {
	return server.BuildAgentCard(s.agent, server.ProtocolGRPC, s.URL(), s.interfaces...)
}

// SendMessage implements [A2AServiceServer].
func (s *Server) SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params a2a.MessageSendParams
	if err := decodeRequest(in, &params); err != nil {
		return nil, s.finish(ctx, MethodSendMessage, err)
	}
	t, err := s.handler.OnMessageSend(ctx, &params)
	if err != nil {
		return nil, s.finish(ctx, MethodSendMessage, err)
	}
	return s.reply(ctx, MethodSendMessage, t)
}

// GetTask implements [A2AServiceServer].
func (s *Server) GetTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params a2a.TaskQueryParams
	if err := decodeRequest(in, &params); err != nil {
		return nil, s.finish(ctx, MethodGetTask, err)
	}
	t, err := s.handler.OnGetTask(ctx, &params)
	if err != nil {
		return nil, s.finish(ctx, MethodGetTask, err)
	}
	return s.reply(ctx, MethodGetTask, t)
}

// CancelTask implements [A2AServiceServer].
func (s *Server) CancelTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params a2a.TaskIDParams
	if err := decodeRequest(in, &params); err != nil {
		return nil, s.finish(ctx, MethodCancelTask, err)
	}
	t, err := s.handler.OnCancelTask(ctx, &params)
	if err != nil {
		return nil, s.finish(ctx, MethodCancelTask, err)
	}
	return s.reply(ctx, MethodCancelTask, t)
}

// GetAgentCard implements [A2AServiceServer].
func (s *Server) GetAgentCard(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(ctx, MethodGetAgentCard, s.AgentCard())
}

// SendStreamingMessage implements [A2AServiceServer].
func (s *Server) SendStreamingMessage(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	var params a2a.MessageSendParams
	if err := decodeRequest(in, &params); err != nil {
		return s.finish(ctx, MethodSendStreamingMessage, err)
	}
	events, err := s.handler.OnMessageSendStream(ctx, &params)
	if err != nil {
		return s.finish(ctx, MethodSendStreamingMessage, err)
	}
	return s.finish(ctx, MethodSendStreamingMessage, s.forward(stream, nil, events))
}

// TaskSubscription implements [A2AServiceServer]. The stored task is sent
// first, followed by the events of a live execution.
func (s *Server) TaskSubscription(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	var params a2a.TaskIDParams
	if err := decodeRequest(in, &params); err != nil {
		return s.finish(ctx, MethodTaskSubscription, err)
	}
	t, events, err := s.handler.OnResubscribeToTask(ctx, &params)
	if err != nil {
		return s.finish(ctx, MethodTaskSubscription, err)
	}
	return s.finish(ctx, MethodTaskSubscription, s.forward(stream, t, events))
}

// forward sends t, when set, then every event of events.
func (s *Server) forward(stream grpc.ServerStreamingServer[structpb.Struct], t *a2a.Task, events <-chan a2a.Event) error {
	if t != nil {
		msg, err := ToStruct(t)
		if err != nil {
			return &a2a.InternalError{Err: err}
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	if events == nil {
		return nil
	}
	for ev := range events {
		msg, err := ToStruct(ev)
		if err != nil {
			return &a2a.InternalError{Err: fmt.Errorf("encode %s event: %w", ev.EventKind(), err)}
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) reply(ctx context.Context, method string, v any) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		return nil, s.finish(ctx, method, &a2a.InternalError{Err: err})
	}
	s.finish(ctx, method, nil)
	return out, nil
}

// finish records the outcome of method and converts err into a status error.
func (s *Server) finish(ctx context.Context, method string, err error) error {
	if err == nil {
		s.metrics.ObserveRequest(server.ProtocolGRPC.String(), method, 0)
		return nil
	}
	code := a2a.CodeOf(err)
	if code == a2a.ErrorCodeInternal {
		s.logger.ErrorContext(ctx, "request failed", "method", method, "error", err)
	}
	s.metrics.ObserveRequest(server.ProtocolGRPC.String(), method, code)
	return ToStatus(err)
}
