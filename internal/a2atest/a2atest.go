// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2atest provides agent executors for transport tests.
package a2atest

import (
	"context"
	"sync/atomic"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/agent_execution"
	"github.com/go-a2a/a2a-server/server/event"
)

// Executor is an [agent_execution.AgentExecutor] publishing the events
// returned by Before, then those returned by Script. When Block is set,
// Execute waits for it to be closed or for its context to be done before
// running Script.
type Executor struct {
	Before func(rc *agent_execution.RequestContext) []a2a.Event
	Script func(rc *agent_execution.RequestContext) []a2a.Event
	Block  chan struct{}

	cancels atomic.Int32
}

var _ agent_execution.AgentExecutor = (*Executor)(nil)

// Execute implements [agent_execution.AgentExecutor].
func (e *Executor) Execute(ctx context.Context, rc *agent_execution.RequestContext, q *event.EventQueue) error {
	if e.Before != nil {
		if err := enqueue(q, e.Before(rc)); err != nil {
			return err
		}
	}
	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.Script == nil {
		return nil
	}
	return enqueue(q, e.Script(rc))
}

func enqueue(q *event.EventQueue, events []a2a.Event) error {
	for _, ev := range events {
		if err := q.Enqueue(ev); err != nil {
			return err
		}
	}
	return nil
}

// Cancel implements [agent_execution.AgentExecutor].
func (e *Executor) Cancel(context.Context, *agent_execution.RequestContext, *event.EventQueue) error {
	e.cancels.Add(1)
	return nil
}

// Cancels returns the number of Cancel calls.
func (e *Executor) Cancels() int {
	return int(e.cancels.Load())
}

// MessageArtifactCompleted emits Message("a"), artifact "x" and a final COMPLETED status.
func MessageArtifactCompleted(rc *agent_execution.RequestContext) []a2a.Event {
	return []a2a.Event{
		a2a.NewAgentTextMessage(rc.TaskID, rc.ContextID, "a"),
		a2a.NewArtifactUpdateEvent(rc.TaskID, rc.ContextID, a2a.Artifact{ArtifactID: "x", Parts: []a2a.Part{a2a.NewTextPart("X")}}, false),
		a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateCompleted}, true),
	}
}

// WorkingMessage emits a WORKING status and Message("a").
func WorkingMessage(rc *agent_execution.RequestContext) []a2a.Event {
	return []a2a.Event{
		a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateWorking}, false),
		a2a.NewAgentTextMessage(rc.TaskID, rc.ContextID, "a"),
	}
}

// ArtifactCompleted emits artifact "x" and a final COMPLETED status.
func ArtifactCompleted(rc *agent_execution.RequestContext) []a2a.Event {
	return MessageArtifactCompleted(rc)[1:]
}

// Agent describes a fixed test agent.
type Agent struct{}

func (Agent) Name() string            { return "Test Agent" }
func (Agent) Description() string     { return "agent under test" }
func (Agent) Version() string         { return "0.0.1" }
func (Agent) SupportsStreaming() bool { return true }
