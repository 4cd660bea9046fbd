// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/agent_execution"
	"github.com/go-a2a/a2a-server/server/event"
	"github.com/go-a2a/a2a-server/server/task"
)

// scriptedExecutor publishes the events returned by before, then the events
// returned by script, optionally after block is closed.
type scriptedExecutor struct {
	before  func(rc *agent_execution.RequestContext) []a2a.Event
	script  func(rc *agent_execution.RequestContext) []a2a.Event
	block   chan struct{}
	cancels atomic.Int32
}

func (e *scriptedExecutor) Execute(ctx context.Context, rc *agent_execution.RequestContext, q *event.EventQueue) error {
	if e.before != nil {
		for _, ev := range e.before(rc) {
			if err := q.Enqueue(ev); err != nil {
				return err
			}
		}
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, ev := range e.script(rc) {
		if err := q.Enqueue(ev); err != nil {
			return err
		}
	}
	return nil
}

func (e *scriptedExecutor) Cancel(context.Context, *agent_execution.RequestContext, *event.EventQueue) error {
	e.cancels.Add(1)
	return nil
}

// messageArtifactCompleted emits Message("a"), Artifact X and a final COMPLETED status.
func messageArtifactCompleted(rc *agent_execution.RequestContext) []a2a.Event {
	return []a2a.Event{
		a2a.NewAgentTextMessage(rc.TaskID, rc.ContextID, "a"),
		a2a.NewArtifactUpdateEvent(rc.TaskID, rc.ContextID, a2a.Artifact{ArtifactID: "x", Parts: []a2a.Part{a2a.NewTextPart("X")}}, false),
		a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateCompleted}, true),
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	finished map[string]int
}

func (r *fakeRecorder) TaskStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) TaskFinished(state string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[string]int)
	}
	r.finished[state]++
}

func (r *fakeRecorder) ObserveRequest(string, string, int) {}

func newHandler(t *testing.T, exec agent_execution.AgentExecutor, store task.TaskStore, opts ...DefaultRequestHandlerOption) *DefaultRequestHandler {
	t.Helper()

	if store == nil {
		store = task.NewInMemoryTaskStore()
	}
	opts = append([]DefaultRequestHandlerOption{WithSyncTimeout(5 * time.Second), WithPollTimeout(20 * time.Millisecond)}, opts...)
	h := NewDefaultRequestHandler(exec, store, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

func sendParams(taskID, text string) *a2a.MessageSendParams {
	msg := a2a.NewUserTextMessage(text)
	msg.TaskID = taskID
	return &a2a.MessageSendParams{Message: msg}
}

func historyTexts(t *a2a.Task) []string {
	texts := make([]string, len(t.History))
	for i := range t.History {
		texts[i] = t.History[i].Text()
	}
	return texts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForState(t *testing.T, h *DefaultRequestHandler, taskID string, state a2a.TaskState) *a2a.Task {
	t.Helper()

	var got *a2a.Task
	waitFor(t, fmt.Sprintf("task %s to be %s", taskID, state), func() bool {
		tk, err := h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
		got = tk
		return err == nil && tk.Status.State == state
	})
	return got
}

func collect(t *testing.T, events <-chan a2a.Event) []a2a.Event {
	t.Helper()

	var got []a2a.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("stream not closed, got %d events", len(got))
		}
	}
}

func newSQLiteStore(t *testing.T) task.TaskStore {
	t.Helper()

	db, err := task.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	store, err := task.NewDatabaseTaskStore(task.DatabaseTaskStoreConfig{DB: db, CreateTable: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Initialize(t.Context()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestOnMessageSend(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) task.TaskStore{
		"memory": func(*testing.T) task.TaskStore { return task.NewInMemoryTaskStore() },
		"sqlite": newSQLiteStore,
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &fakeRecorder{}
			h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, newStore(t), WithMetrics(rec))

			got, err := h.OnMessageSend(t.Context(), sendParams("", "input"))
			if err != nil {
				t.Fatalf("OnMessageSend() error = %v", err)
			}
			if got.Status.State != a2a.TaskStateCompleted {
				t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateCompleted)
			}
			if diff := cmp.Diff([]string{"input", "a"}, historyTexts(got)); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}
			if len(got.Artifacts) != 1 || got.Artifacts[0].ArtifactID != "x" {
				t.Errorf("artifacts = %+v, want exactly artifact x", got.Artifacts)
			}

			rec.mu.Lock()
			defer rec.mu.Unlock()
			if rec.started != 1 || rec.finished[string(a2a.TaskStateCompleted)] != 1 {
				t.Errorf("metrics started=%d finished=%v", rec.started, rec.finished)
			}
		})
	}
}

func TestOnMessageSend_HistoryLength(t *testing.T) {
	t.Parallel()

	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)
	params := sendParams("", "input")
	params.Configuration = &a2a.MessageSendConfiguration{HistoryLength: 1}

	got, err := h.OnMessageSend(t.Context(), params)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a"}, historyTexts(got)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_BudgetExpired(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
	h := newHandler(t, exec, nil, WithSyncTimeout(30*time.Millisecond))

	got, err := h.OnMessageSend(t.Context(), sendParams("slow", "input"))
	if err != nil {
		t.Fatalf("OnMessageSend() error = %v", err)
	}
	if got.Status.State.IsTerminal() {
		t.Fatalf("state = %s, want a non-terminal snapshot", got.Status.State)
	}

	// the task keeps running after the caller stopped waiting
	close(exec.block)
	done := waitForState(t, h, "slow", a2a.TaskStateCompleted)
	if diff := cmp.Diff([]string{"input", "a"}, historyTexts(done)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_NonBlocking(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
	h := newHandler(t, exec, nil)

	params := sendParams("nb", "input")
	blocking := false
	params.Configuration = &a2a.MessageSendConfiguration{Blocking: &blocking}

	got, err := h.OnMessageSend(t.Context(), params)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != a2a.TaskStateSubmitted {
		t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateSubmitted)
	}
	close(exec.block)
	waitForState(t, h, "nb", a2a.TaskStateCompleted)
}

func TestOnMessageSend_Errors(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
	h := newHandler(t, exec, nil, WithSyncTimeout(10*time.Millisecond))
	defer close(exec.block)

	if _, err := h.OnMessageSend(t.Context(), sendParams("busy", "first")); err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		params   *a2a.MessageSendParams
		wantCode int
	}{
		"error: no parts": {
			params:   &a2a.MessageSendParams{Message: &a2a.Message{Role: a2a.RoleUser}},
			wantCode: a2a.ErrorCodeInvalidParams,
		},
		"error: nil message": {
			params:   &a2a.MessageSendParams{},
			wantCode: a2a.ErrorCodeInvalidParams,
		},
		"error: task still in progress": {
			params:   sendParams("busy", "second"),
			wantCode: a2a.ErrorCodeInvalidRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.OnMessageSend(t.Context(), tt.params)
			if err == nil {
				t.Fatal("OnMessageSend() error = nil")
			}
			if got := a2a.CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %d, want %d (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestOnMessageSend_ResubmitTerminalTask(t *testing.T) {
	t.Parallel()

	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)

	first, err := h.OnMessageSend(t.Context(), sendParams("again", "one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.OnMessageSend(t.Context(), sendParams("again", "two"))
	if err != nil {
		t.Fatalf("resubmit error = %v", err)
	}

	if second.ContextID != first.ContextID {
		t.Errorf("ContextID = %q, want %q", second.ContextID, first.ContextID)
	}
	if second.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s, want %s", second.Status.State, a2a.TaskStateCompleted)
	}
	if diff := cmp.Diff([]string{"one", "a", "two", "a"}, historyTexts(second)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_ExecutorFailures(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		exec     agent_execution.AgentExecutor
		wantText string
	}{
		"panic": {
			exec: &scriptedExecutor{script: func(*agent_execution.RequestContext) []a2a.Event {
				panic("agent exploded")
			}},
			wantText: "agent exploded",
		},
		"no terminal event": {
			exec: &scriptedExecutor{script: func(rc *agent_execution.RequestContext) []a2a.Event {
				return []a2a.Event{a2a.NewAgentTextMessage(rc.TaskID, rc.ContextID, "partial")}
			}},
			wantText: "without a terminal status",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHandler(t, tt.exec, nil)
			got, err := h.OnMessageSend(t.Context(), sendParams("", "input"))
			if err != nil {
				t.Fatalf("OnMessageSend() error = %v", err)
			}
			if got.Status.State != a2a.TaskStateFailed {
				t.Fatalf("state = %s, want %s", got.Status.State, a2a.TaskStateFailed)
			}
			if msg := got.Status.Message; msg == nil || !strings.Contains(msg.Text(), tt.wantText) {
				t.Errorf("status message = %v, want it to contain %q", msg, tt.wantText)
			}
		})
	}
}

func TestOnMessageSendStream(t *testing.T) {
	t.Parallel()

	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)

	events, err := h.OnMessageSendStream(t.Context(), sendParams("", "input"))
	if err != nil {
		t.Fatalf("OnMessageSendStream() error = %v", err)
	}

	var kinds []string
	for _, ev := range collect(t, events) {
		kinds = append(kinds, ev.EventKind())
	}
	want := []string{a2a.KindMessage, a2a.KindArtifactUpdate, a2a.KindStatusUpdate}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}
}

func TestOnGetTask(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryTaskStore()
	msg := a2a.NewUserTextMessage("m1")
	msg.TaskID = "five"
	tk := a2a.NewTask(msg)
	for _, text := range []string{"m2", "m3", "m4", "m5"} {
		tk = tk.Apply(a2a.NewAgentTextMessage("five", tk.ContextID, text))
	}
	if err := store.Save(t.Context(), tk); err != nil {
		t.Fatal(err)
	}
	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, store)

	tests := map[string]struct {
		params      *a2a.TaskQueryParams
		wantHistory []string
		wantCode    int
	}{
		"success: most recent entry": {
			params:      &a2a.TaskQueryParams{ID: "five", HistoryLength: 1},
			wantHistory: []string{"m5"},
		},
		"success: full history": {
			params:      &a2a.TaskQueryParams{ID: "five"},
			wantHistory: []string{"m1", "m2", "m3", "m4", "m5"},
		},
		"error: unknown task": {
			params:   &a2a.TaskQueryParams{ID: "missing"},
			wantCode: a2a.ErrorCodeTaskNotFound,
		},
		"error: negative history length": {
			params:   &a2a.TaskQueryParams{ID: "five", HistoryLength: -1},
			wantCode: a2a.ErrorCodeInvalidParams,
		},
		"error: empty id": {
			params:   &a2a.TaskQueryParams{},
			wantCode: a2a.ErrorCodeInvalidParams,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := h.OnGetTask(t.Context(), tt.params)
			if tt.wantCode != 0 {
				if a2a.CodeOf(err) != tt.wantCode {
					t.Fatalf("OnGetTask() error = %v, want code %d", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("OnGetTask() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantHistory, historyTexts(got)); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOnCancelTask_TerminalTask(t *testing.T) {
	t.Parallel()

	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)
	done, err := h.OnMessageSend(t.Context(), sendParams("", "input"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: done.ID})
	var notCancelable *a2a.TaskNotCancelableError
	if !errors.As(err, &notCancelable) {
		t.Fatalf("OnCancelTask() error = %v, want TaskNotCancelableError", err)
	}
	if notCancelable.State != a2a.TaskStateCompleted {
		t.Errorf("error state = %s, want %s", notCancelable.State, a2a.TaskStateCompleted)
	}

	stored, err := h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: done.ID})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(done, stored); diff != "" {
		t.Errorf("stored task changed by cancel (-want +got):\n%s", diff)
	}
}

func TestOnCancelTask_RunningTask(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
	h := newHandler(t, exec, nil)

	type result struct {
		task *a2a.Task
		err  error
	}
	waiting := make(chan result, 1)
	go func() {
		tk, err := h.OnMessageSend(context.Background(), sendParams("running", "input"))
		waiting <- result{tk, err}
	}()
	waitForState(t, h, "running", a2a.TaskStateSubmitted)
	waitFor(t, "execution to register", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.running["running"] != nil
	})

	got, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: "running"})
	if err != nil {
		t.Fatalf("OnCancelTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateCanceled)
	}
	if n := exec.cancels.Load(); n != 1 {
		t.Errorf("executor Cancel calls = %d, want 1", n)
	}

	// the synchronous caller observes the cancellation and returns normally
	select {
	case res := <-waiting:
		if res.err != nil {
			t.Fatalf("waiting OnMessageSend() error = %v", res.err)
		}
		if res.task.Status.State != a2a.TaskStateCanceled {
			t.Errorf("waiting caller state = %s, want %s", res.task.Status.State, a2a.TaskStateCanceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}
}

func TestOnCancelTask_StoredTask(t *testing.T) {
	t.Parallel()

	store := task.NewInMemoryTaskStore()
	msg := a2a.NewUserTextMessage("orphan")
	msg.TaskID = "orphan"
	tk := a2a.NewTask(msg)
	tk.Status.State = a2a.TaskStateWorking
	if err := store.Save(t.Context(), tk); err != nil {
		t.Fatal(err)
	}
	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, store)

	got, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: "orphan"})
	if err != nil {
		t.Fatalf("OnCancelTask() error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateCanceled)
	}

	if _, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: "missing"}); !a2a.IsTaskNotFound(err) {
		t.Errorf("OnCancelTask(missing) error = %v, want TaskNotFoundError", err)
	}
}

func TestOnResubscribeToTask(t *testing.T) {
	t.Parallel()

	t.Run("completed task returns the stored task", func(t *testing.T) {
		t.Parallel()

		h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)
		done, err := h.OnMessageSend(t.Context(), sendParams("", "input"))
		if err != nil {
			t.Fatal(err)
		}

		got, events, err := h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: done.ID})
		if err != nil {
			t.Fatalf("OnResubscribeToTask() error = %v", err)
		}
		if events != nil {
			t.Error("events channel is not nil for a completed task")
		}
		if diff := cmp.Diff(done, got); diff != "" {
			t.Errorf("task mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("running task streams the remaining events", func(t *testing.T) {
		t.Parallel()

		exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
		h := newHandler(t, exec, nil, WithSyncTimeout(10*time.Millisecond))
		if _, err := h.OnMessageSend(t.Context(), sendParams("live", "input")); err != nil {
			t.Fatal(err)
		}

		got, events, err := h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "live"})
		if err != nil {
			t.Fatalf("OnResubscribeToTask() error = %v", err)
		}
		if got.ID != "live" || events == nil {
			t.Fatalf("got task %v events %v, want live stream", got, events)
		}
		close(exec.block)

		var kinds []string
		for _, ev := range collect(t, events) {
			kinds = append(kinds, ev.EventKind())
		}
		want := []string{a2a.KindMessage, a2a.KindArtifactUpdate, a2a.KindStatusUpdate}
		if diff := cmp.Diff(want, kinds); diff != "" {
			t.Errorf("stream mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)
		if _, _, err := h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "missing"}); !a2a.IsTaskNotFound(err) {
			t.Errorf("error = %v, want TaskNotFoundError", err)
		}
	})
}

func TestOnListTasks(t *testing.T) {
	t.Parallel()

	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, nil)
	var first *a2a.Task
	for i := range 3 {
		params := sendParams("", fmt.Sprintf("input %d", i))
		if first != nil {
			params.Message.ContextID = first.ContextID
		}
		tk, err := h.OnMessageSend(t.Context(), params)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = tk
		}
	}
	if _, err := h.OnMessageSend(t.Context(), sendParams("", "other")); err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		contextID string
		want      int
	}{
		"all tasks":      {want: 4},
		"single context": {contextID: first.ContextID, want: 3},
		"unknown":        {contextID: "nope", want: 0},
	}
	for name, tt := range tests {
		got, err := h.OnListTasks(t.Context(), tt.contextID)
		if err != nil {
			t.Fatalf("%s: OnListTasks() error = %v", name, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: got %d tasks, want %d", name, len(got), tt.want)
		}
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{script: messageArtifactCompleted, block: make(chan struct{})}
	store := task.NewInMemoryTaskStore()
	h := NewDefaultRequestHandler(exec, store, WithSyncTimeout(10*time.Millisecond))

	if _, err := h.OnMessageSend(t.Context(), sendParams("pending", "input")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := store.Get(t.Context(), "pending")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state after Close = %s, want %s", got.Status.State, a2a.TaskStateCanceled)
	}

	if _, err := h.OnMessageSend(t.Context(), sendParams("", "late")); a2a.CodeOf(err) != a2a.ErrorCodeInternal {
		t.Errorf("send after Close error = %v, want internal error", err)
	}
}

func workingMessage(rc *agent_execution.RequestContext) []a2a.Event {
	return []a2a.Event{
		a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateWorking}, false),
		a2a.NewAgentTextMessage(rc.TaskID, rc.ContextID, "a"),
	}
}

func artifactCompleted(rc *agent_execution.RequestContext) []a2a.Event {
	return messageArtifactCompleted(rc)[1:]
}

func TestOnResubscribeToTask_MidFlight(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{before: workingMessage, script: artifactCompleted, block: make(chan struct{})}
	h := newHandler(t, exec, nil, WithSyncTimeout(10*time.Millisecond))
	if _, err := h.OnMessageSend(t.Context(), sendParams("mid", "input")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "message a to be stored", func() bool {
		tk, err := h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: "mid"})
		return err == nil && len(tk.History) == 2
	})

	snapshot, events, err := h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "mid"})
	if err != nil {
		t.Fatalf("OnResubscribeToTask() error = %v", err)
	}
	if events == nil {
		t.Fatal("events channel is nil for a live task")
	}
	if snapshot.Status.State != a2a.TaskStateWorking {
		t.Errorf("snapshot state = %s, want %s", snapshot.Status.State, a2a.TaskStateWorking)
	}
	if diff := cmp.Diff([]string{"input", "a"}, historyTexts(snapshot)); diff != "" {
		t.Errorf("snapshot history mismatch (-want +got):\n%s", diff)
	}
	close(exec.block)

	rebuilt := snapshot
	var kinds []string
	for _, ev := range collect(t, events) {
		kinds = append(kinds, ev.EventKind())
		rebuilt = rebuilt.Apply(ev)
	}
	if diff := cmp.Diff([]string{a2a.KindArtifactUpdate, a2a.KindStatusUpdate}, kinds); diff != "" {
		t.Errorf("events after snapshot mismatch (-want +got):\n%s", diff)
	}

	stored := waitForState(t, h, "mid", a2a.TaskStateCompleted)
	if rebuilt.Status.State != stored.Status.State {
		t.Errorf("rebuilt state = %s, want %s", rebuilt.Status.State, stored.Status.State)
	}
	if diff := cmp.Diff(historyTexts(stored), historyTexts(rebuilt)); diff != "" {
		t.Errorf("rebuilt history mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(stored.Artifacts, rebuilt.Artifacts); diff != "" {
		t.Errorf("rebuilt artifacts mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_FinalFlagOnNonTerminalStatus(t *testing.T) {
	t.Parallel()

	workingFinal := func(rc *agent_execution.RequestContext) []a2a.Event {
		return []a2a.Event{
			a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateWorking}, true),
		}
	}

	t.Run("sync", func(t *testing.T) {
		t.Parallel()

		h := newHandler(t, &scriptedExecutor{script: workingFinal}, nil)
		got, err := h.OnMessageSend(t.Context(), sendParams("", "input"))
		if err != nil {
			t.Fatalf("OnMessageSend() error = %v", err)
		}
		if got.Status.State != a2a.TaskStateFailed {
			t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateFailed)
		}
		waitFor(t, "execution to be released", func() bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			return len(h.running) == 0
		})
	})

	t.Run("stream", func(t *testing.T) {
		t.Parallel()

		h := newHandler(t, &scriptedExecutor{script: workingFinal}, nil)
		events, err := h.OnMessageSendStream(t.Context(), sendParams("", "input"))
		if err != nil {
			t.Fatalf("OnMessageSendStream() error = %v", err)
		}

		var states []a2a.TaskState
		for _, ev := range collect(t, events) {
			if st, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
				states = append(states, st.Status.State)
			}
		}
		want := []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateFailed}
		if diff := cmp.Diff(want, states); diff != "" {
			t.Errorf("streamed states mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestOnMessageSendStream_ForeignTaskEvent(t *testing.T) {
	t.Parallel()

	foreign := func(rc *agent_execution.RequestContext) []a2a.Event {
		return []a2a.Event{
			a2a.NewAgentTextMessage("other-task", rc.ContextID, "stray"),
			a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStatus{State: a2a.TaskStateCompleted}, true),
		}
	}
	h := newHandler(t, &scriptedExecutor{script: foreign}, nil)
	events, err := h.OnMessageSendStream(t.Context(), sendParams("own", "input"))
	if err != nil {
		t.Fatalf("OnMessageSendStream() error = %v", err)
	}

	streamed := collect(t, events)
	for _, ev := range streamed {
		if ev.EventTaskID() != "own" {
			t.Errorf("streamed event of task %q", ev.EventTaskID())
		}
	}
	stored := waitForState(t, h, "own", a2a.TaskStateFailed)
	if diff := cmp.Diff([]string{"input", stored.Status.Message.Text()}, historyTexts(stored)); diff != "" {
		t.Errorf("stored history mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stored.Status.Message.Text(), "another task") {
		t.Errorf("failure message = %q, want task mismatch", stored.Status.Message.Text())
	}
}

// gatedStore blocks Get for one task until release is closed.
type gatedStore struct {
	task.TaskStore
	taskID  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == s.taskID {
		s.once.Do(func() { close(s.entered) })
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.TaskStore.Get(ctx, taskID)
}

func TestOnMessageSend_SlowStoreDoesNotBlockOtherTasks(t *testing.T) {
	t.Parallel()

	store := &gatedStore{
		TaskStore: task.NewInMemoryTaskStore(),
		taskID:    "slow",
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	h := newHandler(t, &scriptedExecutor{script: messageArtifactCompleted}, store)

	slowDone := make(chan error, 1)
	go func() {
		_, err := h.OnMessageSend(t.Context(), sendParams("slow", "input"))
		slowDone <- err
	}()
	<-store.entered

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	got, err := h.OnMessageSend(ctx, sendParams("fast", "input"))
	if err != nil {
		t.Fatalf("OnMessageSend() while another task is being prepared error = %v", err)
	}
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s, want %s", got.Status.State, a2a.TaskStateCompleted)
	}

	close(store.release)
	if err := <-slowDone; err != nil {
		t.Errorf("slow OnMessageSend() error = %v", err)
	}
}
