// Copyright 2025 The Go A2A Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"log/slog"
	"sync"
)

// TaskStateProvider decides whether a late tap should be answered from the
// task store instead of a live queue.
type TaskStateProvider interface {
	// IsTaskActive reports whether the task may still produce events.
	IsTaskActive(ctx context.Context, taskID string) bool
	// IsTaskFinalized reports whether the task reached a terminal state.
	IsTaskFinalized(ctx context.Context, taskID string) bool
}

// QueueManager owns the mapping from task ID to its event queue and enforces
// at most one live queue per task.
type QueueManager interface {
	// CreateOrTap returns a new root queue for taskID, or a tapped cursor on
	// the live queue. created reports which one was returned.
	CreateOrTap(taskID string) (q *EventQueue, created bool, err error)
	// Get returns the live queue of taskID.
	Get(taskID string) (*EventQueue, bool)
	// Tap returns a new cursor on the live queue of taskID.
	Tap(ctx context.Context, taskID string) (*EventQueue, error)
	// Close closes and removes the queue of taskID.
	Close(taskID string) error
	// Release removes the entry of taskID if it still refers to q's log.
	Release(taskID string, q *EventQueue)
	// AwaitPollerStart blocks until a consumer started reading q.
	AwaitPollerStart(ctx context.Context, q *EventQueue) error
	// CloseAll closes and removes every queue.
	CloseAll()
}

// ManagerOption configures an [InMemoryQueueManager].
type ManagerOption func(*InMemoryQueueManager)

// WithTaskStateProvider sets the predicate consulted by Tap.
func WithTaskStateProvider(p TaskStateProvider) ManagerOption {
	return func(m *InMemoryQueueManager) {
		m.states = p
	}
}

// WithLogger sets the [*slog.Logger] for the manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *InMemoryQueueManager) {
		m.logger = logger
	}
}

// InMemoryQueueManager is a process-local [QueueManager].
type InMemoryQueueManager struct {
	mu     sync.Mutex
	queues map[string]*EventQueue
	states TaskStateProvider
	logger *slog.Logger
}

var _ QueueManager = (*InMemoryQueueManager)(nil)

// NewInMemoryQueueManager returns an empty manager.
func NewInMemoryQueueManager(opts ...ManagerOption) *InMemoryQueueManager {
	m := &InMemoryQueueManager{
		queues: make(map[string]*EventQueue),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "queue_manager")

	return m
}

// CreateOrTap implements [QueueManager].
//
// A closed queue left in the map is treated as absent and replaced, which
// allows a task to be submitted again after it completed.
func (m *InMemoryQueueManager) CreateOrTap(taskID string) (*EventQueue, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[taskID]; ok {
		if !q.IsClosed() {
			child, err := q.Tap()
			if err == nil {
				return child, false, nil
			}
		}
		m.logger.Debug("replacing closed queue", "task_id", taskID)
		delete(m.queues, taskID)
	}

	q := NewTaskEventQueue(taskID)
	m.queues[taskID] = q

	return q, true, nil
}

// Get implements [QueueManager].
func (m *InMemoryQueueManager) Get(taskID string) (*EventQueue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[taskID]
	if !ok || q.IsClosed() {
		return nil, false
	}
	return q, true
}

// Tap implements [QueueManager].
//
// It returns [ErrTaskFinalized] when the state provider says the task result
// must come from the task store, and [ErrQueueNotFound] when there is no live
// queue for an otherwise active task.
func (m *InMemoryQueueManager) Tap(ctx context.Context, taskID string) (*EventQueue, error) {
	if m.states != nil && m.states.IsTaskFinalized(ctx, taskID) {
		return nil, ErrTaskFinalized
	}

	q, ok := m.Get(taskID)
	if !ok {
		if m.states != nil && !m.states.IsTaskActive(ctx, taskID) {
			return nil, ErrTaskFinalized
		}
		return nil, ErrQueueNotFound
	}

	child, err := q.Tap()
	if err != nil {
		// closed between lookup and tap: the terminal event is already in
		return nil, ErrTaskFinalized
	}
	return child, nil
}

// Close implements [QueueManager].
func (m *InMemoryQueueManager) Close(taskID string) error {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	delete(m.queues, taskID)
	m.mu.Unlock()

	if !ok {
		return ErrQueueNotFound
	}
	q.Close()

	return nil
}

// Release implements [QueueManager].
func (m *InMemoryQueueManager) Release(taskID string, q *EventQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.queues[taskID]; ok && cur.sameLog(q) {
		delete(m.queues, taskID)
	}
}

// AwaitPollerStart implements [QueueManager].
func (m *InMemoryQueueManager) AwaitPollerStart(ctx context.Context, q *EventQueue) error {
	select {
	case <-q.PollerStarted():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseAll implements [QueueManager].
func (m *InMemoryQueueManager) CloseAll() {
	m.mu.Lock()
	queues := m.queues
	m.queues = make(map[string]*EventQueue)
	m.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

// Len returns the number of queues currently tracked.
func (m *InMemoryQueueManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}
