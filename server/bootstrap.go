// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Bootstrap starts and stops a set of protocol servers for one agent.
type Bootstrap struct {
	name        string
	description string
	servers     []ProtocolServer
	logger      *slog.Logger

	mu      sync.Mutex
	running []ProtocolServer
}

// BootstrapOption configures a [Bootstrap].
type BootstrapOption func(*Bootstrap)

// WithBootstrapLogger sets the [*slog.Logger] for the bootstrap.
func WithBootstrapLogger(logger *slog.Logger) BootstrapOption {
	return func(b *Bootstrap) {
		b.logger = logger
	}
}

// WithAgentInfo sets the agent name and description logged on start.
func WithAgentInfo(name, description string) BootstrapOption {
	return func(b *Bootstrap) {
		b.name = name
		b.description = description
	}
}

// NewBootstrap returns a bootstrap over the enabled servers.
func NewBootstrap(servers []ProtocolServer, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		servers: slices.Clone(servers),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bootstrap")
	return b
}

// Start starts every server in order. A server that fails to start is logged
// and skipped; the others still start. Start returns the joined start errors.
func (b *Bootstrap) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.InfoContext(ctx, "starting A2A server", "agent", b.name, "description", b.description)

	var errs []error
	for _, srv := range b.servers {
		if slices.Contains(b.running, srv) {
			continue
		}
		if err := srv.Start(ctx); err != nil {
			b.logger.ErrorContext(ctx, "failed to start server", "protocol", srv.Protocol().String(), "error", err)
			errs = append(errs, err)
			continue
		}
		b.running = append(b.running, srv)
		b.logger.InfoContext(ctx, "server started", "protocol", srv.Protocol().String(), "port", srv.Port())
	}

	b.logger.InfoContext(ctx, "A2A server started", "running", len(b.running), "configured", len(b.servers))
	return errors.Join(errs...)
}

// Stop stops every running server. Failures are logged and the remaining
// servers still stop.
func (b *Bootstrap) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.InfoContext(ctx, "shutting down A2A server")

	var errs []error
	for _, srv := range b.running {
		if !srv.IsRunning() {
			continue
		}
		if err := srv.Stop(ctx); err != nil {
			b.logger.ErrorContext(ctx, "failed to stop server", "protocol", srv.Protocol().String(), "error", err)
			errs = append(errs, err)
			continue
		}
		b.logger.InfoContext(ctx, "server stopped", "protocol", srv.Protocol().String())
	}
	b.running = nil

	b.logger.InfoContext(ctx, "A2A server stopped")
	return errors.Join(errs...)
}

// Servers returns the configured servers.
func (b *Bootstrap) Servers() []ProtocolServer {
	return slices.Clone(b.servers)
}

// Running returns the servers started by the last [Bootstrap.Start].
func (b *Bootstrap) Running() []ProtocolServer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.running)
}
