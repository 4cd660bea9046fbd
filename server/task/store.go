// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task provides task persistence, the event-to-snapshot aggregation
// used by the request handler, and the updater helper for agent executors.
package task

import (
	"context"
	"errors"

	a2a "github.com/go-a2a/a2a-server"
)

// UpdateFunc computes the next snapshot of a stored task.
type UpdateFunc func(current *a2a.Task) (*a2a.Task, error)

// TaskStore defines the interface for task persistence operations.
type TaskStore interface {
	// Save persists a task, replacing any task with the same ID.
	Save(ctx context.Context, task *a2a.Task) error

	// Get retrieves a task by its ID.
	// Returns [*a2a.TaskNotFoundError] if the task doesn't exist.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)

	// Update atomically replaces the task with the result of fn.
	// Returns [*a2a.TaskNotFoundError] if the task doesn't exist.
	Update(ctx context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error)

	// Delete removes a task.
	// Returns [*a2a.TaskNotFoundError] if the task doesn't exist.
	Delete(ctx context.Context, taskID string) error

	// List retrieves tasks in creation order, optionally filtered by context ID.
	// A limit <= 0 returns all remaining tasks.
	List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error)

	// Count returns the number of tasks, optionally filtered by context ID.
	Count(ctx context.Context, contextID string) (int64, error)

	// Initialize prepares the storage backend for use.
	Initialize(ctx context.Context) error

	// Close releases the storage backend.
	Close(ctx context.Context) error
}

func validate(task *a2a.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}
	if task.ID == "" {
		return errors.New("task ID cannot be empty")
	}
	if !task.Status.State.Valid() {
		return errors.New("invalid task state " + string(task.Status.State))
	}
	return nil
}
