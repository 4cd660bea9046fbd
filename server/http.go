// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-server"
)

// HTTPServer is a [ProtocolServer] serving an [http.Handler].
type HTTPServer struct {
	*Lifecycle

	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
}

var _ ProtocolServer = (*HTTPServer)(nil)

// NewHTTPServer returns a server for protocol serving handler.
func NewHTTPServer(protocol Protocol, handler http.Handler, opts ...Option) *HTTPServer {
	return &HTTPServer{
		Lifecycle: NewLifecycleFromOptions(protocol, opts...),
		handler:   handler,
	}
}

// Handler returns the handler served.
func (s *HTTPServer) Handler() http.Handler { return s.handler }

// Start implements [ProtocolServer].
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsRunning() {
		s.Logger().WarnContext(ctx, "server is already running", "port", s.Port())
		return nil
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv

	return s.Run(ctx, func(lis net.Listener) error {
		if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

// Stop implements [ProtocolServer].
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.Shutdown(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return nil
		}
		return srv.Shutdown(ctx)
	})
}

// WriteJSON writes v as the JSON body of a response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// CardHandler serves the agent card returned by card.
func CardHandler(card func() *a2a.AgentCard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, card())
	}
}

// DecodeJSON decodes the JSON document read from r into v. Malformed JSON is
// reported as [a2a.JSONParseError] and a document not matching v as
// [a2a.InvalidParamsError].
func DecodeJSON(r io.Reader, v any) error {
	err := json.UnmarshalRead(r, v)
	if err == nil {
		return nil
	}
	var synErr *jsontext.SyntacticError
	if errors.As(err, &synErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &a2a.JSONParseError{Err: err}
	}
	return &a2a.InvalidParamsError{Reason: err.Error()}
}
