// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs the A2A protocol servers: the shared lifecycle of a
// listening server, the per protocol agent card and the bootstrap that starts
// and stops every enabled protocol.
package server

import (
	"context"
	"fmt"

	a2a "github.com/go-a2a/a2a-server"
)

// Protocol identifies a transport protocol.
type Protocol int

// Supported protocols.
const (
	ProtocolREST Protocol = iota + 1
	ProtocolGRPC
	ProtocolJSONRPC
)

// Protocols lists every supported protocol in start order.
var Protocols = []Protocol{ProtocolREST, ProtocolGRPC, ProtocolJSONRPC}

// String returns the display name of p.
func (p Protocol) String() string {
	switch p {
	case ProtocolREST:
		return "REST"
	case ProtocolGRPC:
		return "gRPC"
	case ProtocolJSONRPC:
		return "JSON-RPC"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// DefaultPort returns the port p listens on unless configured otherwise.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolREST:
		return 8080
	case ProtocolGRPC:
		return 9092
	case ProtocolJSONRPC:
		return 7003
	default:
		return 0
	}
}

// Transport returns the transport name advertised in agent cards.
func (p Protocol) Transport() string {
	switch p {
	case ProtocolREST:
		return a2a.TransportHTTPJSON
	case ProtocolGRPC:
		return a2a.TransportGRPC
	case ProtocolJSONRPC:
		return a2a.TransportJSONRPC
	default:
		return ""
	}
}

// ProtocolServer is one listening transport.
type ProtocolServer interface {
	// Protocol returns the protocol served.
	Protocol() Protocol

	// Start binds the listening socket and serves in the background. Bind
	// failures are returned. Starting a running server is a no-op.
	Start(ctx context.Context) error

	// Stop shuts the server down gracefully within ctx. Stopping a stopped
	// server is a no-op.
	Stop(ctx context.Context) error

	// IsRunning reports whether the server is serving.
	IsRunning() bool

	// Port returns the bound port while running, and the configured port otherwise.
	Port() int

	// URL returns the base URL of the server.
	URL() string
}
