// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc serves the A2A protocol over JSON-RPC 2.0.
package jsonrpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server"
	"github.com/go-a2a/a2a-server/server/handler"
)

// Config holds configuration for the JSON-RPC server.
type Config struct {
	// Handler handles the A2A requests.
	Handler handler.RequestHandler
	// Agent is advertised in the agent card.
	Agent server.AgentInfo
	// Interfaces are advertised as additional interfaces of the agent card.
	Interfaces []a2a.AgentInterface
	// Metrics records served requests. Defaults to [metrics.Nop].
	Metrics metrics.Recorder
	// MetricsHandler is served at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// streamFunc starts a streaming method. A non-nil t is streamed before the events.
type streamFunc func(ctx context.Context, params jsontext.Value) (*a2a.Task, <-chan a2a.Event, error)

// Server is the JSON-RPC [server.ProtocolServer].
type Server struct {
	*server.HTTPServer

	handler    handler.RequestHandler
	agent      server.AgentInfo
	interfaces []a2a.AgentInterface
	metrics    metrics.Recorder
	logger     *slog.Logger

	mux     *http.ServeMux
	router  *MethodRouter
	streams map[string]streamFunc
}

var (
	_ server.ProtocolServer = (*Server)(nil)
	_ http.Handler          = (*Server)(nil)
)

// NewServer returns a JSON-RPC server for cfg.
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
		handler:    cfg.Handler,
		agent:      cfg.Agent,
		interfaces: cfg.Interfaces,
		metrics:    cfg.Metrics,
		mux:        http.NewServeMux(),
		router:     NewMethodRouter(),
	}
	s.HTTPServer = server.NewHTTPServer(server.ProtocolJSONRPC, s.mux, opts...)
	s.logger = s.Logger()

	s.registerMethods()

	s.mux.HandleFunc("GET "+a2a.AgentCardWellKnownPath, server.CardHandler(s.AgentCard))
	s.mux.HandleFunc("POST /{$}", s.handleRequest)
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, cfg.MetricsHandler)
	}

	return s, nil
}

// registerMethods registers all JSON-RPC method handlers.
func (s *Server) registerMethods() {
	s.router.RegisterMethod(a2a.MethodMessageSend, s.handleMessageSend)
	s.router.RegisterMethod(a2a.MethodTasksGet, s.handleGetTask)
	s.router.RegisterMethod(a2a.MethodTasksCancel, s.handleCancelTask)

	s.streams = map[string]streamFunc{
		a2a.MethodMessageStream:    s.handleMessageStream,
		a2a.MethodTasksResubscribe: s.handleResubscribe,
	}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// AgentCard returns the agent card of this server.
func (s *Server) AgentCard() *a2a.AgentCard {
	return server.BuildAgentCard(s.agent, server.ProtocolJSONRPC, s.URL(), s.interfaces...)
}

// handleRequest handles all JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req a2a.JSONRPCRequest
	err := server.DecodeJSON(r.Body, &req)
	r.Body.Close()
	if err != nil {
		if a2a.CodeOf(err) == a2a.ErrorCodeInvalidParams {
			// valid JSON that is not a request object
			err = &a2a.InvalidRequestError{Reason: err.Error()}
		}
		s.writeResponse(w, r, "unknown", a2a.NewJSONRPCErrorResponse(nil, err))
		return
	}
	if err := validateRequest(&req); err != nil {
		s.writeResponse(w, r, "unknown", a2a.NewJSONRPCErrorResponse(req.ID, err))
		return
	}

	if stream, ok := s.streams[req.Method]; ok {
		s.handleStream(w, r, &req, stream)
		return
	}

	method := req.Method
	if !s.router.Has(method) {
		method = "unknown"
	}
	s.writeResponse(w, r, method, s.router.Route(ctx, &req))
}

func (s *Server) handleMessageSend(ctx context.Context, raw jsontext.Value) (any, error) {
	var params a2a.MessageSendParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return s.handler.OnMessageSend(ctx, &params)
}

func (s *Server) handleGetTask(ctx context.Context, raw jsontext.Value) (any, error) {
	var params a2a.TaskQueryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return s.handler.OnGetTask(ctx, &params)
}

func (s *Server) handleCancelTask(ctx context.Context, raw jsontext.Value) (any, error) {
	var params a2a.TaskIDParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return s.handler.OnCancelTask(ctx, &params)
}

func (s *Server) handleMessageStream(ctx context.Context, raw jsontext.Value) (*a2a.Task, <-chan a2a.Event, error) {
	var params a2a.MessageSendParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, nil, err
	}
	events, err := s.handler.OnMessageSendStream(ctx, &params)
	return nil, events, err
}

func (s *Server) handleResubscribe(ctx context.Context, raw jsontext.Value) (*a2a.Task, <-chan a2a.Event, error) {
	var params a2a.TaskIDParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, nil, err
	}
	return s.handler.OnResubscribeToTask(ctx, &params)
}

// handleStream answers a streaming method with Server-Sent Events, one
// JSON-RPC response per event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest, stream streamFunc) {
	ctx := r.Context()

	t, events, err := stream(ctx, req.Params)
	if err != nil {
		s.writeResponse(w, r, req.Method, a2a.NewJSONRPCErrorResponse(req.ID, err))
		return
	}

	st, err := server.NewStream(w)
	if err != nil {
		s.writeResponse(w, r, req.Method, a2a.NewJSONRPCErrorResponse(req.ID, &a2a.InternalError{Err: err}))
		return
	}
	s.metrics.ObserveRequest(server.ProtocolJSONRPC.String(), req.Method, 0)

	if t != nil {
		if err := st.Send("", a2a.NewJSONRPCResult(req.ID, t)); err != nil {
			s.logger.WarnContext(ctx, "write task event", "error", err)
			return
		}
	}
	if events == nil {
		return
	}
	for ev := range events {
		if err := st.Send("", a2a.NewJSONRPCResult(req.ID, ev)); err != nil {
			s.logger.WarnContext(ctx, "stream client gone", "task_id", ev.EventTaskID(), "error", err)
			return
		}
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, method string, resp *a2a.JSONRPCResponse) {
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
		if code == a2a.ErrorCodeInternal {
			s.logger.ErrorContext(r.Context(), "request failed", "method", method, "error", resp.Error.Message)
		}
	}
	s.metrics.ObserveRequest(server.ProtocolJSONRPC.String(), method, code)
	server.WriteJSON(w, http.StatusOK, resp)
}
