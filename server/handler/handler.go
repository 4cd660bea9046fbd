// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler implements the transport independent A2A request handling:
// task creation, agent execution, event streaming, retrieval and cancellation.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server/agent_execution"
	"github.com/go-a2a/a2a-server/server/event"
	"github.com/go-a2a/a2a-server/server/task"
)

// DefaultSyncTimeout bounds how long [DefaultRequestHandler.OnMessageSend] waits for a terminal state.
const DefaultSyncTimeout = 30 * time.Second

// RequestHandler handles A2A requests independently of the transport protocol.
type RequestHandler interface {
	// OnMessageSend starts a task and waits, within the sync budget, for its
	// terminal state. A task still running when the budget expires is returned
	// in its current non-terminal state and keeps running.
	OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error)

	// OnMessageSendStream starts a task and returns its events. The channel is
	// closed after the terminal event.
	OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) (<-chan a2a.Event, error)

	// OnGetTask returns the stored task, trimmed to the requested history length.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnCancelTask cancels a task that has not reached a terminal state.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnResubscribeToTask returns the stored task and, while the task is still
	// executing, the channel of the events that follow that snapshot. The
	// channel is nil when the task has no live execution.
	OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, <-chan a2a.Event, error)

	// OnListTasks returns the stored tasks, optionally restricted to a context.
	OnListTasks(ctx context.Context, contextID string) ([]*a2a.Task, error)
}

// DefaultRequestHandler is the default [RequestHandler].
//
// Every accepted message runs the agent executor in its own goroutine, and a
// processor goroutine folds the produced events into the task store, so a
// task keeps progressing after its caller stopped waiting.
type DefaultRequestHandler struct {
	executor agent_execution.AgentExecutor
	store    task.TaskStore
	queues   event.QueueManager
	builder  agent_execution.RequestContextBuilder
	metrics  metrics.Recorder
	logger   *slog.Logger

	syncTimeout time.Duration
	pollTimeout time.Duration

	mu      sync.Mutex
	running map[string]*execution
	closed  bool
	wg      sync.WaitGroup
}

var _ RequestHandler = (*DefaultRequestHandler)(nil)

// DefaultRequestHandlerOption configures a [DefaultRequestHandler].
type DefaultRequestHandlerOption func(*DefaultRequestHandler)

// WithQueueManager sets the queue manager. By default an in-memory manager
// backed by the task store is used.
func WithQueueManager(qm event.QueueManager) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.queues = qm
	}
}

// WithContextBuilder sets the builder of the executor request contexts.
func WithContextBuilder(b agent_execution.RequestContextBuilder) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.builder = b
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.logger = logger
	}
}

// WithSyncTimeout sets the wait budget of synchronous sends. A value <= 0
// waits until the task is terminal or the caller goes away.
func WithSyncTimeout(d time.Duration) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.syncTimeout = d
	}
}

// WithPollTimeout sets the dequeue poll timeout of event consumers.
func WithPollTimeout(d time.Duration) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.pollTimeout = d
	}
}

// NewDefaultRequestHandler returns a [DefaultRequestHandler] running executor
// and persisting tasks to store.
func NewDefaultRequestHandler(executor agent_execution.AgentExecutor, store task.TaskStore, opts ...DefaultRequestHandlerOption) *DefaultRequestHandler {
	if executor == nil {
		panic("agent executor cannot be nil")
	}
	if store == nil {
		panic("task store cannot be nil")
	}

	h := &DefaultRequestHandler{
		executor:    executor,
		store:       store,
		builder:     agent_execution.NewSimpleRequestContextBuilder(),
		metrics:     metrics.Nop(),
		logger:      slog.Default(),
		syncTimeout: DefaultSyncTimeout,
		pollTimeout: event.DefaultPollTimeout,
		running:     make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "request_handler")
	if h.queues == nil {
		h.queues = event.NewInMemoryQueueManager(
			event.WithTaskStateProvider(task.StoreStateProvider{Store: store}),
			event.WithLogger(h.logger),
		)
	}

	return h
}

// OnGetTask implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}
	if params.HistoryLength < 0 {
		return nil, &a2a.InvalidParamsError{Reason: "historyLength must not be negative"}
	}

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, toA2AError(err)
	}
	return t.WithHistoryLength(params.HistoryLength), nil
}

// OnListTasks implements [RequestHandler].
func (h *DefaultRequestHandler) OnListTasks(ctx context.Context, contextID string) ([]*a2a.Task, error) {
	tasks, err := h.store.List(ctx, contextID, 0, 0)
	if err != nil {
		return nil, toA2AError(err)
	}
	return tasks, nil
}

// OnCancelTask implements [RequestHandler].
//
// A terminal task is rejected with [a2a.TaskNotCancelableError] and left
// untouched. A running task gets its executor Cancel called and its execution
// context canceled, and the call returns once the task is terminal.
func (h *DefaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}

	current, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, toA2AError(err)
	}
	if current.Status.State.IsTerminal() {
		return nil, &a2a.TaskNotCancelableError{TaskID: current.ID, State: current.Status.State}
	}

	h.mu.Lock()
	exec := h.running[params.ID]
	h.mu.Unlock()

	if exec == nil {
		return h.cancelStored(ctx, params.ID)
	}

	if err := h.executor.Cancel(ctx, exec.rc, exec.queue); err != nil {
		h.logger.WarnContext(ctx, "agent executor cancel failed", "task_id", exec.taskID, "error", err)
	}
	if !exec.queue.HasTerminal() {
		exec.publishCanceled(h.logger)
	}
	exec.cancel()

	select {
	case <-exec.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, toA2AError(err)
	}
	if t.Status.State != a2a.TaskStateCanceled {
		return nil, &a2a.TaskNotCancelableError{TaskID: t.ID, State: t.Status.State}
	}
	return t, nil
}

// cancelStored cancels a task that has no live execution in this process.
func (h *DefaultRequestHandler) cancelStored(ctx context.Context, taskID string) (*a2a.Task, error) {
	t, err := h.store.Update(ctx, taskID, func(cur *a2a.Task) (*a2a.Task, error) {
		if cur.Status.State.IsTerminal() {
			return nil, &a2a.TaskNotCancelableError{TaskID: cur.ID, State: cur.Status.State}
		}
		status := a2a.TaskStatus{
			State:   a2a.TaskStateCanceled,
			Message: a2a.NewAgentTextMessage(cur.ID, cur.ContextID, "task canceled"),
		}
		return cur.Apply(a2a.NewStatusUpdateEvent(cur.ID, cur.ContextID, status, true)), nil
	})
	if err != nil {
		return nil, toA2AError(err)
	}
	return t, nil
}

// OnResubscribeToTask implements [RequestHandler].
//
// For a live execution the returned task is a snapshot of every event applied
// so far and the channel carries exactly the events that follow it.
func (h *DefaultRequestHandler) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, <-chan a2a.Event, error) {
	if params == nil || params.ID == "" {
		return nil, nil, &a2a.InvalidParamsError{Reason: "task id is required"}
	}

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, nil, toA2AError(err)
	}

	h.mu.Lock()
	exec := h.running[params.ID]
	h.mu.Unlock()
	if exec != nil {
		return h.subscribe(ctx, exec)
	}

	cursor, err := h.queues.Tap(ctx, params.ID)
	switch {
	case err == nil:
		return t, event.NewEventConsumer(cursor, h.pollTimeout, h.logger).ConsumeAll(ctx), nil
	case errors.Is(err, event.ErrTaskFinalized), errors.Is(err, event.ErrQueueNotFound):
		// answer from the store; reload in case the task finished meanwhile
		t, err = h.store.Get(ctx, params.ID)
		if err != nil {
			return nil, nil, toA2AError(err)
		}
		return t, nil, nil
	default:
		return nil, nil, toA2AError(err)
	}
}

// subscribe snapshots the task of exec and forks a cursor at the processor
// position, so the snapshot and the stream neither overlap nor leave a gap.
func (h *DefaultRequestHandler) subscribe(ctx context.Context, exec *execution) (*a2a.Task, <-chan a2a.Event, error) {
	exec.applyMu.Lock()
	t, err := h.store.Get(ctx, exec.taskID)
	var cursor *event.EventQueue
	if err == nil {
		cursor, err = exec.queue.Fork()
	}
	exec.applyMu.Unlock()

	switch {
	case err == nil:
		return t, event.NewEventConsumer(cursor, h.pollTimeout, h.logger).ConsumeAll(ctx), nil
	case errors.Is(err, event.ErrQueueClosed):
		// the terminal event is in; answer once it is stored
		select {
		case <-exec.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if t, err = h.store.Get(ctx, exec.taskID); err != nil {
			return nil, nil, toA2AError(err)
		}
		return t, nil, nil
	default:
		return nil, nil, toA2AError(err)
	}
}

// Close cancels every running execution, closes all queues and waits for the
// execution goroutines to exit or ctx to be done.
func (h *DefaultRequestHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, exec := range h.running {
		exec.cancel()
	}
	h.mu.Unlock()

	h.queues.CloseAll()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
