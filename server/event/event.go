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

// Package event provides the per-task event queue bridging agent execution to
// blocking and streaming consumers, and the manager owning one queue per task.
package event

import (
	"errors"
	"time"
)

// DefaultPollTimeout bounds a single consumer wait so callers can observe
// cancellation and budgets while a producer stalls.
const DefaultPollTimeout = 500 * time.Millisecond

var (
	// ErrQueueClosed is returned by Enqueue after close and by Dequeue once a
	// closed queue is drained.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueEmpty is returned when no event arrived within the dequeue timeout.
	ErrQueueEmpty = errors.New("event queue is empty")

	// ErrNilEvent is returned when enqueuing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrTaskMismatch is returned when enqueuing an event of another task.
	ErrTaskMismatch = errors.New("event belongs to another task")

	// ErrQueueNotFound is returned when no live queue exists for a task.
	ErrQueueNotFound = errors.New("no live event queue for task")

	// ErrTaskFinalized is returned when tapping a task whose result must be
	// read from the task store.
	ErrTaskFinalized = errors.New("task is finalized")
)
