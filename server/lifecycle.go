// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// Lifecycle holds the state shared by every [ProtocolServer]: the configured
// address, the bound listener and the running flag.
type Lifecycle struct {
	protocol Protocol
	host     string
	port     int
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	boundPort int
	serveDone chan struct{}
	serveErr  error
}

// NewLifecycle returns the lifecycle of a protocol server listening on host:port.
// Port 0 binds an ephemeral port.
func NewLifecycle(protocol Protocol, host string, port int, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		protocol: protocol,
		host:     host,
		port:     port,
		logger:   logger.With("component", "server", "protocol", protocol.String()),
	}
}

// Protocol implements [ProtocolServer].
func (l *Lifecycle) Protocol() Protocol { return l.protocol }

// Logger returns the logger scoped to this server.
func (l *Lifecycle) Logger() *slog.Logger { return l.logger }

// IsRunning implements [ProtocolServer].
func (l *Lifecycle) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Port implements [ProtocolServer].
func (l *Lifecycle) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return l.boundPort
	}
	return l.port
}

// URL implements [ProtocolServer].
func (l *Lifecycle) URL() string {
	return URL(l.host, l.Port())
}

// URL returns the base URL of a server listening on host:port.
// An empty host is advertised as localhost.
func URL(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Run binds the listener and calls serve with it in a new goroutine.
// It returns once the socket is bound, so bind errors surface here.
func (l *Lifecycle) Run(ctx context.Context, serve func(net.Listener) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		l.logger.WarnContext(ctx, "server is already running", "port", l.boundPort)
		return nil
	}

	addr := net.JoinHostPort(l.host, strconv.Itoa(l.port))
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s on %s: %w", l.protocol, addr, err)
	}

	l.boundPort = lis.Addr().(*net.TCPAddr).Port
	l.running = true
	l.serveErr = nil
	done := make(chan struct{})
	l.serveDone = done

	go func() {
		defer close(done)
		if err := serve(lis); err != nil {
			l.logger.Error("server stopped serving", "error", err)
			l.mu.Lock()
			l.serveErr = err
			l.running = false
			l.mu.Unlock()
		}
	}()

	l.logger.InfoContext(ctx, "server started", "addr", lis.Addr().String())
	return nil
}

// Shutdown calls shutdown and waits for the serve goroutine to return.
func (l *Lifecycle) Shutdown(ctx context.Context, shutdown func(context.Context) error) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.logger.WarnContext(ctx, "server is not running")
		return nil
	}
	done := l.serveDone
	l.mu.Unlock()

	err := shutdown(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("stop %s server: %w", l.protocol, err)
	}
	l.logger.InfoContext(ctx, "server stopped")
	return nil
}
