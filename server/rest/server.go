// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package rest serves the A2A protocol as HTTP+JSON resources.
package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server"
	"github.com/go-a2a/a2a-server/server/handler"
)

const (
	suffixCancel    = ":cancel"
	suffixSubscribe = ":subscribe"
)

// Config holds configuration for the REST server.
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

// Server is the REST [server.ProtocolServer].
type Server struct {
	*server.HTTPServer

	handler    handler.RequestHandler
	agent      server.AgentInfo
	interfaces []a2a.AgentInterface
	metrics    metrics.Recorder
	logger     *slog.Logger
	mux        *http.ServeMux
}

var (
	_ server.ProtocolServer = (*Server)(nil)
	_ http.Handler          = (*Server)(nil)
)

// NewServer returns a REST server for cfg.
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
	}
	s.HTTPServer = server.NewHTTPServer(server.ProtocolREST, s.mux, opts...)
	s.logger = s.Logger()

	s.mux.HandleFunc("GET "+a2a.AgentCardWellKnownPath, server.CardHandler(s.AgentCard))
	s.mux.HandleFunc("POST "+a2a.RESTPathMessageSend, s.handleMessageSend)
	s.mux.HandleFunc("POST "+a2a.RESTPathMessageStream, s.handleMessageStream)
	s.mux.HandleFunc("GET "+a2a.RESTPathTasks, s.handleListTasks)
	s.mux.HandleFunc("GET "+a2a.RESTPathTasks+"/{id}", s.handleGetTask)
	s.mux.HandleFunc("POST "+a2a.RESTPathTasks+"/{id}", s.handleTaskAction)
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, cfg.MetricsHandler)
	}
	s.mux.HandleFunc("/", s.handleNotFound)

	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// AgentCard returns the agent card of this server.
func (s *Server) AgentCard() *a2a.AgentCard {
	return server.BuildAgentCard(s.agent, server.ProtocolREST, s.URL(), s.interfaces...)
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request) {
	const method = a2a.MethodMessageSend

	var params a2a.MessageSendParams
	if err := decode(r, &params); err != nil {
		s.writeError(w, r, method, err)
		return
	}

	t, err := s.handler.OnMessageSend(r.Context(), &params)
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}

	// the result is not available yet; the task keeps running
	status := http.StatusOK
	if !t.Status.State.IsTerminal() {
		status = http.StatusAccepted
	}
	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, 0)
	server.WriteJSON(w, status, t)
}

func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	const method = a2a.MethodMessageStream

	var params a2a.MessageSendParams
	if err := decode(r, &params); err != nil {
		s.writeError(w, r, method, err)
		return
	}

	events, err := s.handler.OnMessageSendStream(r.Context(), &params)
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}
	s.stream(w, r, method, nil, events)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	const method = "tasks/list"

	tasks, err := s.handler.OnListTasks(r.Context(), r.URL.Query().Get("contextId"))
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}
	if tasks == nil {
		tasks = []*a2a.Task{}
	}

	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, 0)
	server.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if taskID, ok := strings.CutSuffix(id, suffixSubscribe); ok {
		s.handleSubscribe(w, r, taskID)
		return
	}

	const method = a2a.MethodTasksGet

	params := &a2a.TaskQueryParams{ID: id}
	if v := r.URL.Query().Get("historyLength"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, method, &a2a.InvalidParamsError{Reason: "historyLength must be an integer"})
			return
		}
		params.HistoryLength = n
	}

	t, err := s.handler.OnGetTask(r.Context(), params)
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}

	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, 0)
	server.WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	const method = a2a.MethodTasksCancel

	taskID, ok := strings.CutSuffix(r.PathValue("id"), suffixCancel)
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	t, err := s.handler.OnCancelTask(r.Context(), &a2a.TaskIDParams{ID: taskID})
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}

	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, 0)
	server.WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, taskID string) {
	const method = a2a.MethodTasksResubscribe

	// the current task first, then the events that follow it
	t, events, err := s.handler.OnResubscribeToTask(r.Context(), &a2a.TaskIDParams{ID: taskID})
	if err != nil {
		s.writeError(w, r, method, err)
		return
	}
	s.stream(w, r, method, t, events)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, "unknown", &a2a.MethodNotFoundError{Method: r.Method + " " + r.URL.Path})
}

// stream writes t, when set, then every event as Server-Sent Events named by kind.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, method string, t *a2a.Task, events <-chan a2a.Event) {
	st, err := server.NewStream(w)
	if err != nil {
		s.writeError(w, r, method, &a2a.InternalError{Err: err})
		return
	}
	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, 0)

	if t != nil {
		if err := st.Send(a2a.KindTask, t); err != nil {
			s.logger.WarnContext(r.Context(), "write task event", "error", err)
		}
	}
	if events == nil {
		return
	}
	for ev := range events {
		if err := st.Send(ev.EventKind(), ev); err != nil {
			s.logger.WarnContext(r.Context(), "stream client gone", "task_id", ev.EventTaskID(), "error", err)
			return
		}
	}
}

type errorBody struct {
	Error *a2a.JSONRPCError `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, method string, err error) {
	code := a2a.CodeOf(err)
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", method, "error", err)
	}
	s.metrics.ObserveRequest(server.ProtocolREST.String(), method, code)
	server.WriteJSON(w, status, errorBody{Error: &a2a.JSONRPCError{Code: code, Message: err.Error()}})
}

// StatusCode returns the HTTP status answering err.
func StatusCode(err error) int {
	switch a2a.CodeOf(err) {
	case a2a.ErrorCodeJSONParse, a2a.ErrorCodeInvalidRequest, a2a.ErrorCodeInvalidParams:
		return http.StatusBadRequest
	case a2a.ErrorCodeTaskNotFound, a2a.ErrorCodeMethodNotFound:
		return http.StatusNotFound
	case a2a.ErrorCodeTaskNotCancelable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return server.DecodeJSON(r.Body, v)
}
