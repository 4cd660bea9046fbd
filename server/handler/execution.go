// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/agent_execution"
	"github.com/go-a2a/a2a-server/server/event"
	"github.com/go-a2a/a2a-server/server/task"
)

// execution tracks one in-flight run of the agent executor.
type execution struct {
	taskID  string
	rc      *agent_execution.RequestContext
	queue   *event.EventQueue
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	// applyMu is held by the processor from reading an event until it is
	// stored, so a snapshot taken under it matches the processor position.
	applyMu sync.Mutex

	// done is closed once the processor applied the last event to the store.
	done chan struct{}
}

// publishCanceled enqueues a terminal CANCELED status on behalf of the executor.
func (e *execution) publishCanceled(logger *slog.Logger) {
	updater, err := task.NewTaskUpdater(e.queue, e.taskID, e.rc.ContextID)
	if err != nil {
		return
	}
	err = updater.Cancel(updater.NewAgentMessage(a2a.NewTextPart("task canceled")))
	if err != nil && !errors.Is(err, event.ErrQueueClosed) {
		logger.Warn("publish canceled status", "task_id", e.taskID, "error", err)
	}
}

// OnMessageSend implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error) {
	exec, _, err := h.start(ctx, params, false)
	if err != nil {
		return nil, err
	}

	historyLength := 0
	if cfg := params.Configuration; cfg != nil {
		historyLength = cfg.HistoryLength
		if cfg.Blocking != nil && !*cfg.Blocking {
			return h.snapshot(ctx, exec.taskID, historyLength)
		}
	}

	var expired <-chan time.Time
	if h.syncTimeout > 0 {
		timer := time.NewTimer(h.syncTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-exec.done:
	case <-expired:
		h.logger.InfoContext(ctx, "sync wait budget expired, task continues in background",
			"task_id", exec.taskID, "budget", h.syncTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return h.snapshot(ctx, exec.taskID, historyLength)
}

// OnMessageSendStream implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) (<-chan a2a.Event, error) {
	_, cursor, err := h.start(ctx, params, true)
	if err != nil {
		return nil, err
	}
	return event.NewEventConsumer(cursor, h.pollTimeout, h.logger).ConsumeAll(ctx), nil
}

func (h *DefaultRequestHandler) snapshot(ctx context.Context, taskID string, historyLength int) (*a2a.Task, error) {
	t, err := h.store.Get(context.WithoutCancel(ctx), taskID)
	if err != nil {
		return nil, toA2AError(err)
	}
	return t.WithHistoryLength(historyLength), nil
}

// start accepts params as a new execution. When tap is set it also returns a
// cursor attached before the executor starts, so it observes every event.
func (h *DefaultRequestHandler) start(ctx context.Context, params *a2a.MessageSendParams, tap bool) (*execution, *event.EventQueue, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	msg := params.Message.Clone()
	if msg.Role == "" {
		msg.Role = a2a.RoleUser
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, errHandlerClosed
	}
	if _, ok := h.running[taskID]; ok {
		h.mu.Unlock()
		return nil, nil, &a2a.InvalidRequestError{Reason: "task " + taskID + " is still in progress"}
	}
	// the live queue reserves taskID until the execution is registered
	queue, created, err := h.queues.CreateOrTap(taskID)
	h.mu.Unlock()
	if err != nil {
		return nil, nil, toA2AError(err)
	}
	if !created {
		queue.Detach()
		return nil, nil, &a2a.InvalidRequestError{Reason: "task " + taskID + " is still in progress"}
	}

	abort := func(err error) (*execution, *event.EventQueue, error) {
		h.queues.Release(taskID, queue)
		queue.Close()
		return nil, nil, toA2AError(err)
	}

	current, err := h.prepareTask(ctx, taskID, msg)
	if err != nil {
		return abort(err)
	}

	sendParams := *params
	sendParams.Message = msg
	rc, err := h.builder.Build(ctx, &sendParams, current)
	if err != nil {
		return abort(err)
	}

	var cursor *event.EventQueue
	if tap {
		if cursor, err = queue.Tap(); err != nil {
			return abort(err)
		}
	}

	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	exec := &execution{
		taskID:  taskID,
		rc:      rc,
		queue:   queue,
		ctx:     execCtx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return abort(errHandlerClosed)
	}
	h.running[taskID] = exec
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.TaskStarted()
	h.logger.DebugContext(ctx, "task accepted", "task_id", taskID, "context_id", current.ContextID)

	go h.process(exec)
	go h.execute(exec)

	return exec, cursor, nil
}

// prepareTask stores the task the execution starts from. A known task gets
// msg appended to its history and goes back to SUBMITTED.
func (h *DefaultRequestHandler) prepareTask(ctx context.Context, taskID string, msg *a2a.Message) (*a2a.Task, error) {
	existing, err := h.store.Get(ctx, taskID)
	switch {
	case err == nil:
		msg.TaskID = existing.ID
		msg.ContextID = existing.ContextID
		next := existing.Apply(msg)
		next.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: time.Now().UTC()}
		if err := h.store.Save(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	case a2a.IsTaskNotFound(err):
		msg.TaskID = taskID
		t := a2a.NewTask(msg)
		if err := h.store.Save(ctx, t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, err
	}
}

// execute runs the agent executor once the processor is polling.
func (h *DefaultRequestHandler) execute(exec *execution) {
	defer h.wg.Done()

	if err := h.queues.AwaitPollerStart(exec.ctx, exec.queue); err != nil {
		h.logger.Debug("execution canceled before start", "task_id", exec.taskID, "error", err)
	}
	if err := agent_execution.Run(exec.ctx, h.executor, exec.rc, exec.queue, h.logger); err != nil {
		h.logger.Debug("agent execution returned an error", "task_id", exec.taskID, "error", err)
	}
}

// process folds every event of exec into the task store until the terminal
// event, then releases the queue and the execution slot. A task left
// non-terminal is interrupted.
func (h *DefaultRequestHandler) process(exec *execution) {
	defer h.wg.Done()
	defer close(exec.done)
	defer exec.cancel()

	ctx := context.WithoutCancel(exec.ctx)
	logger := h.logger.With("task_id", exec.taskID)

	for {
		if err := exec.queue.Wait(ctx, h.pollTimeout); err != nil {
			if errors.Is(err, event.ErrQueueEmpty) {
				continue
			}
			break
		}

		exec.applyMu.Lock()
		ev, err := exec.queue.DequeueNoWait()
		if err == nil {
			if _, err := h.store.Update(ctx, exec.taskID, func(cur *a2a.Task) (*a2a.Task, error) {
				if cur.Status.State.IsTerminal() {
					// canceled from the store while the execution was starting
					return cur, nil
				}
				return cur.Apply(ev), nil
			}); err != nil {
				logger.Error("apply event to task", "kind", ev.EventKind(), "error", err)
			}
		}
		exec.applyMu.Unlock()

		if err != nil && !errors.Is(err, event.ErrQueueEmpty) {
			break
		}
		if err == nil && a2a.IsFinalEvent(ev) {
			break
		}
	}
	exec.queue.Detach()

	if t, err := h.store.Get(ctx, exec.taskID); err != nil || !t.Status.State.IsTerminal() {
		h.interrupt(ctx, exec, logger)
	}

	h.queues.Release(exec.taskID, exec.queue)
	h.mu.Lock()
	if h.running[exec.taskID] == exec {
		delete(h.running, exec.taskID)
	}
	h.mu.Unlock()

	state := a2a.TaskStateFailed
	if t, err := h.store.Get(ctx, exec.taskID); err == nil {
		state = t.Status.State
	}
	h.metrics.TaskFinished(string(state), time.Since(exec.started))
	logger.Debug("task finished", "state", state)
}

// interrupt moves the stored task to a terminal state when its event stream
// ended without one.
func (h *DefaultRequestHandler) interrupt(ctx context.Context, exec *execution, logger *slog.Logger) {
	state, text := a2a.TaskStateFailed, "task execution interrupted"
	if exec.ctx.Err() != nil {
		state, text = a2a.TaskStateCanceled, "task canceled"
	}
	logger.Warn("event stream ended before a terminal status", "state", state)

	_, err := h.store.Update(ctx, exec.taskID, func(cur *a2a.Task) (*a2a.Task, error) {
		if cur.Status.State.IsTerminal() {
			return cur, nil
		}
		status := a2a.TaskStatus{
			State:   state,
			Message: a2a.NewAgentTextMessage(cur.ID, cur.ContextID, text),
		}
		return cur.Apply(a2a.NewStatusUpdateEvent(cur.ID, cur.ContextID, status, true)), nil
	})
	if err != nil {
		logger.Error("store interrupted task", "error", err)
	}
}
