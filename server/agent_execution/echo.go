// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"strings"
)

// EchoAgent answers every input with "Echo: " followed by the input.
type EchoAgent struct {
	name        string
	description string
	version     string
}

var _ Agent = (*EchoAgent)(nil)

// NewEchoAgent returns an [EchoAgent]. Empty fields fall back to defaults.
func NewEchoAgent(name, description, version string) *EchoAgent {
	if name == "" {
		name = "Echo Agent"
	}
	if description == "" {
		description = "Echoes the user input back"
	}
	if version == "" {
		version = "1.0.0"
	}
	return &EchoAgent{
		name:        name,
		description: description,
		version:     version,
	}
}

func (a *EchoAgent) Name() string            { return a.name }
func (a *EchoAgent) Description() string     { return a.description }
func (a *EchoAgent) Version() string         { return a.version }
func (a *EchoAgent) SupportsStreaming() bool { return true }

// Execute implements [Agent]. Empty input is treated as "Hello".
func (a *EchoAgent) Execute(ctx context.Context, input string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		input = "Hello"
	}
	return &Response{Text: "Echo: " + input}, nil
}
