// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/event"
	"github.com/go-a2a/a2a-server/server/task"
)

// Agent is the application logic served by the server.
type Agent interface {
	Name() string
	Description() string
	Version() string

	// Execute answers input.
	Execute(ctx context.Context, input string) (*Response, error)

	// SupportsStreaming reports whether the agent card advertises streaming.
	SupportsStreaming() bool
}

// Response is the answer of an [Agent].
type Response struct {
	// Text is published as an agent message when not empty.
	Text string

	Artifacts []a2a.Artifact
}

// agentExecutor adapts an [Agent] to [AgentExecutor].
type agentExecutor struct {
	agent Agent
}

var _ AgentExecutor = (*agentExecutor)(nil)

// NewAgentExecutor returns an [AgentExecutor] running agent.
func NewAgentExecutor(agent Agent) AgentExecutor {
	return &agentExecutor{agent: agent}
}

// Execute implements [AgentExecutor].
func (e *agentExecutor) Execute(ctx context.Context, rc *RequestContext, queue *event.EventQueue) error {
	updater, err := task.NewTaskUpdater(queue, rc.TaskID, rc.ContextID)
	if err != nil {
		return err
	}
	if err := updater.StartWork(nil); err != nil {
		return err
	}

	resp, err := e.agent.Execute(ctx, rc.UserInput())
	if err != nil {
		return err
	}
	if resp == nil {
		resp = &Response{}
	}

	if resp.Text != "" {
		if err := updater.SendMessage(updater.NewAgentMessage(a2a.NewTextPart(resp.Text))); err != nil {
			return err
		}
	}
	for _, artifact := range resp.Artifacts {
		if err := updater.AddArtifact(artifact, false); err != nil {
			return err
		}
	}

	return updater.Complete(nil)
}

// Cancel implements [AgentExecutor].
func (e *agentExecutor) Cancel(ctx context.Context, rc *RequestContext, queue *event.EventQueue) error {
	if queue.HasTerminal() {
		return nil
	}

	updater, err := task.NewTaskUpdater(queue, rc.TaskID, rc.ContextID)
	if err != nil {
		return err
	}
	err = updater.Cancel(updater.NewAgentMessage(a2a.NewTextPart("task canceled")))
	if errors.Is(err, event.ErrQueueClosed) {
		return nil
	}
	return err
}
