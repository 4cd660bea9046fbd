// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"cmp"
	"context"
	"slices"
	"sync"

	a2a "github.com/go-a2a/a2a-server"
)

type memoryEntry struct {
	task *a2a.Task
	seq  uint64
}

// InMemoryTaskStore is a process-local implementation of [TaskStore].
// Tasks are deep-copied on the way in and out.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*memoryEntry
	seq   uint64
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new InMemoryTaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[string]*memoryEntry),
	}
}

// Save persists a task to the in-memory storage.
func (s *InMemoryTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if err := validate(task); err != nil {
		return newStoreError("save", taskIDOf(task), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(task.Clone())
	return nil
}

func (s *InMemoryTaskStore) putLocked(task *a2a.Task) {
	if e, ok := s.tasks[task.ID]; ok {
		e.task = task
		return
	}
	s.seq++
	s.tasks[task.ID] = &memoryEntry{task: task, seq: s.seq}
}

// Get retrieves a task by its ID from the in-memory storage.
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return e.task.Clone(), nil
}

// Update atomically replaces the task with the result of fn.
func (s *InMemoryTaskStore) Update(ctx context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	next, err := fn(e.task.Clone())
	if err != nil {
		return nil, err
	}
	if err := validate(next); err != nil {
		return nil, newStoreError("update", taskID, err)
	}
	e.task = next.Clone()

	return next, nil
}

// Delete removes a task from the in-memory storage.
func (s *InMemoryTaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return &a2a.TaskNotFoundError{TaskID: taskID}
	}
	delete(s.tasks, taskID)

	return nil
}

// List retrieves tasks in creation order with optional filtering.
func (s *InMemoryTaskStore) List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.tasks))
	for _, e := range s.tasks {
		if contextID != "" && e.task.ContextID != contextID {
			continue
		}
		entries = append(entries, &memoryEntry{task: e.task.Clone(), seq: e.seq})
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *memoryEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	if offset > 0 {
		if offset >= len(entries) {
			return nil, nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	tasks := make([]*a2a.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.task
	}
	return tasks, nil
}

// Count returns the number of stored tasks.
func (s *InMemoryTaskStore) Count(ctx context.Context, contextID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if contextID == "" {
		return int64(len(s.tasks)), nil
	}

	var count int64
	for _, e := range s.tasks {
		if e.task.ContextID == contextID {
			count++
		}
	}
	return count, nil
}

// Initialize prepares the in-memory storage for use.
func (s *InMemoryTaskStore) Initialize(ctx context.Context) error {
	return nil
}

// Close drops every stored task.
func (s *InMemoryTaskStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*memoryEntry)
	return nil
}

func taskIDOf(task *a2a.Task) string {
	if task == nil {
		return ""
	}
	return task.ID
}
