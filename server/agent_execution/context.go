// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution defines the contract between the request handler and
// the agent logic that produces task events.
package agent_execution

import (
	"context"

	a2a "github.com/go-a2a/a2a-server"
)

// RequestContext holds everything an [AgentExecutor] needs to process one
// incoming message.
type RequestContext struct {
	TaskID    string
	ContextID string

	// Message is the user message that started this execution.
	Message *a2a.Message

	// Task is the stored snapshot the execution starts from.
	Task *a2a.Task

	// RelatedTasks are the other tasks of the same context, populated only when
	// the builder is configured to do so.
	RelatedTasks []*a2a.Task

	Configuration *a2a.MessageSendConfiguration
	Metadata      map[string]any
}

// UserInput returns the concatenated text parts of the incoming message.
func (rc *RequestContext) UserInput() string {
	if rc == nil || rc.Message == nil {
		return ""
	}
	return rc.Message.Text()
}

// RequestContextBuilder builds the [RequestContext] supplied to an [AgentExecutor].
type RequestContextBuilder interface {
	// Build creates a RequestContext for params against the current task snapshot.
	Build(ctx context.Context, params *a2a.MessageSendParams, current *a2a.Task) (*RequestContext, error)
}
