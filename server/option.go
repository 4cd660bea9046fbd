// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
)

// Options are the listening settings shared by every protocol server.
type Options struct {
	Host   string
	Port   int
	Logger *slog.Logger
}

// Option represents an option for configuring a protocol server.
type Option func(*Options)

// WithHost sets the host the server binds to.
func WithHost(host string) Option {
	return func(o *Options) {
		o.Host = host
	}
}

// WithPort sets the port the server binds to. Port 0 binds an ephemeral port.
func WithPort(port int) Option {
	return func(o *Options) {
		o.Port = port
	}
}

// WithLogger sets the [*slog.Logger] for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// NewOptions returns the options of a protocol server, starting from
// localhost and the protocol default port.
func NewOptions(protocol Protocol, opts ...Option) Options {
	o := Options{
		Host:   "localhost",
		Port:   protocol.DefaultPort(),
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLifecycleFromOptions returns the [Lifecycle] described by opts.
func NewLifecycleFromOptions(protocol Protocol, opts ...Option) *Lifecycle {
	o := NewOptions(protocol, opts...)
	return NewLifecycle(protocol, o.Host, o.Port, o.Logger)
}
