// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"

	a2a "github.com/go-a2a/a2a-server"
)

// ErrTerminalState is returned by [TaskUpdater] once a terminal status was published.
var ErrTerminalState = errors.New("task is already in a terminal state")

// TaskStoreError represents an error from the task store.
type TaskStoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e *TaskStoreError) Error() string {
	return fmt.Sprintf("task store %s operation failed for task %q: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskStoreError) Unwrap() error {
	return e.Err
}

// TaskNotUpdatableError represents an attempt to update a task in a terminal state.
type TaskNotUpdatableError struct {
	TaskID string
	State  a2a.TaskState
}

// Error returns the error message.
func (e *TaskNotUpdatableError) Error() string {
	return fmt.Sprintf("task %s in state %s cannot be updated", e.TaskID, e.State)
}

// Is reports [ErrTerminalState] equivalence.
func (e *TaskNotUpdatableError) Is(target error) bool {
	return target == ErrTerminalState
}

func newStoreError(op, taskID string, err error) error {
	return &TaskStoreError{Operation: op, TaskID: taskID, Err: err}
}
