// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/a2a-server/internal/pool"
)

// Stream writes Server-Sent Events to an HTTP response.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

// NewStream sends the SSE response headers on w.
// It fails when w cannot flush partial responses.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		w:       w,
		flusher: flusher,
	}, nil
}

// Send writes v as the JSON data of one event. An empty name omits the event field.
func (s *Stream) Send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if name != "" {
		buf.WriteString("event: ")
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("stream is closed")
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		s.closed = true
		return fmt.Errorf("write %s event: %w", name, err)
	}
	s.flusher.Flush()

	return nil
}
