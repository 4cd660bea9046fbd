// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/event"
	"github.com/go-a2a/a2a-server/server/task"
)

// AgentExecutor runs the agent logic of a task and publishes its events.
type AgentExecutor interface {
	// Execute emits zero or more message and artifact events followed by
	// exactly one terminal status event.
	Execute(ctx context.Context, rc *RequestContext, queue *event.EventQueue) error

	// Cancel emits a terminal CANCELED status. It is a no-op when the task
	// already reached a terminal state.
	Cancel(ctx context.Context, rc *RequestContext, queue *event.EventQueue) error
}

// Run invokes executor.Execute and makes sure the queue ends with a terminal
// status event.
//
// A panic or a returned error becomes a FAILED status carrying the error text.
// An executor returning without a terminal event yields FAILED too, or
// CANCELED when ctx was canceled. The executor error, if any, is returned.
func Run(ctx context.Context, executor AgentExecutor, rc *RequestContext, queue *event.EventQueue, logger *slog.Logger) (err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("task_id", rc.TaskID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent executor panicked: %v", r)
			logger.ErrorContext(ctx, "agent executor panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if queue.HasTerminal() {
			return
		}
		finish(ctx, rc, queue, err, logger)
	}()

	return executor.Execute(ctx, rc, queue)
}

func finish(ctx context.Context, rc *RequestContext, queue *event.EventQueue, execErr error, logger *slog.Logger) {
	updater, err := task.NewTaskUpdater(queue, rc.TaskID, rc.ContextID)
	if err != nil {
		logger.ErrorContext(ctx, "cannot publish terminal status", "error", err)
		return
	}

	switch {
	case ctx.Err() != nil && (execErr == nil || errors.Is(execErr, context.Canceled)):
		err = updater.Cancel(updater.NewAgentMessage(a2a.NewTextPart("task canceled")))
	case execErr != nil:
		logger.WarnContext(ctx, "agent execution failed", "error", execErr)
		err = updater.Failed(updater.NewAgentMessage(a2a.NewTextPart(execErr.Error())))
	default:
		logger.WarnContext(ctx, "agent finished without a terminal status")
		err = updater.Failed(updater.NewAgentMessage(a2a.NewTextPart("agent finished without a terminal status")))
	}
	if err != nil {
		logger.WarnContext(ctx, "publish terminal status", "error", err)
	}
}
