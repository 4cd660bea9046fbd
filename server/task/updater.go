// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/event"
)

// TaskUpdater publishes the events of one task execution.
// It refuses further updates once a terminal status has been published.
type TaskUpdater struct {
	taskID    string
	contextID string
	queue     *event.EventQueue

	mu       sync.Mutex
	terminal bool
}

// NewTaskUpdater returns an updater publishing to queue.
func NewTaskUpdater(queue *event.EventQueue, taskID, contextID string) (*TaskUpdater, error) {
	if queue == nil {
		return nil, errors.New("event queue cannot be nil")
	}
	if taskID == "" {
		return nil, errors.New("task ID cannot be empty")
	}
	return &TaskUpdater{
		taskID:    taskID,
		contextID: contextID,
		queue:     queue,
	}, nil
}

// TaskID returns the task ID this updater is associated with.
func (u *TaskUpdater) TaskID() string { return u.taskID }

// ContextID returns the context ID this updater is associated with.
func (u *TaskUpdater) ContextID() string { return u.contextID }

// IsTerminal reports whether a terminal status was published.
func (u *TaskUpdater) IsTerminal() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminal
}

// UpdateStatus publishes a status transition with an optional agent message.
// A terminal state is always published as final.
func (u *TaskUpdater) UpdateStatus(state a2a.TaskState, msg *a2a.Message, final bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal {
		return &TaskNotUpdatableError{TaskID: u.taskID, State: state}
	}

	status := a2a.TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
	ev := a2a.NewStatusUpdateEvent(u.taskID, u.contextID, status, final)
	if err := u.queue.Enqueue(ev); err != nil {
		return fmt.Errorf("publish status %s: %w", state, err)
	}
	if state.IsTerminal() {
		u.terminal = true
	}
	return nil
}

// AddArtifact publishes an artifact increment.
func (u *TaskUpdater) AddArtifact(artifact a2a.Artifact, append bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal {
		return &TaskNotUpdatableError{TaskID: u.taskID}
	}
	if err := u.queue.Enqueue(a2a.NewArtifactUpdateEvent(u.taskID, u.contextID, artifact, append)); err != nil {
		return fmt.Errorf("publish artifact %s: %w", artifact.ArtifactID, err)
	}
	return nil
}

// SendMessage publishes an agent message as its own event.
func (u *TaskUpdater) SendMessage(msg *a2a.Message) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal {
		return &TaskNotUpdatableError{TaskID: u.taskID}
	}
	if err := u.queue.Enqueue(msg); err != nil {
		return fmt.Errorf("publish message %s: %w", msg.MessageID, err)
	}
	return nil
}

// NewAgentMessage returns an agent message bound to this task.
func (u *TaskUpdater) NewAgentMessage(parts ...a2a.Part) *a2a.Message {
	return a2a.NewAgentPartsMessage(u.taskID, u.contextID, parts...)
}

// StartWork marks the task as working.
func (u *TaskUpdater) StartWork(msg *a2a.Message) error {
	return u.UpdateStatus(a2a.TaskStateWorking, msg, false)
}

// Complete marks the task as completed.
func (u *TaskUpdater) Complete(msg *a2a.Message) error {
	return u.UpdateStatus(a2a.TaskStateCompleted, msg, true)
}

// Failed marks the task as failed.
func (u *TaskUpdater) Failed(msg *a2a.Message) error {
	return u.UpdateStatus(a2a.TaskStateFailed, msg, true)
}

// Cancel marks the task as canceled.
func (u *TaskUpdater) Cancel(msg *a2a.Message) error {
	return u.UpdateStatus(a2a.TaskStateCanceled, msg, true)
}
