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
	"fmt"
	"sync"
	"time"

	a2a "github.com/go-a2a/a2a-server"
)

// eventLog is the ordered event log shared by every cursor of a task.
type eventLog struct {
	taskID string // empty accepts events of any task

	mu       sync.Mutex
	events   []a2a.Event
	base     int // absolute offset of events[0]
	cursors  map[*EventQueue]struct{}
	closed   bool
	terminal bool
	notify   chan struct{}

	polling     chan struct{}
	pollingOnce sync.Once
}

// broadcast wakes every waiting consumer. l.mu must be held.
func (l *eventLog) broadcast() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// compact discards events every attached cursor has already read. l.mu must be held.
func (l *eventLog) compact() {
	if len(l.cursors) == 0 {
		return
	}
	low := -1
	for c := range l.cursors {
		if low == -1 || c.pos < low {
			low = c.pos
		}
	}
	drop := low - l.base
	if drop <= 0 {
		return
	}
	n := copy(l.events, l.events[drop:])
	clear(l.events[n:])
	l.events = l.events[:n]
	l.base = low
}

func (l *eventLog) markPolling() {
	l.pollingOnce.Do(func() { close(l.polling) })
}

// EventQueue is a read cursor over the ordered event log of a single task.
//
// One producer enqueues through any cursor; each consumer reads through its own
// cursor obtained from [EventQueue.Tap]. Every cursor observes all events in
// enqueue order, and a final status event is always the last one delivered.
type EventQueue struct {
	log      *eventLog
	pos      int
	detached bool
}

// NewEventQueue returns the root cursor of a new, empty event log.
func NewEventQueue() *EventQueue {
	return NewTaskEventQueue("")
}

// NewTaskEventQueue returns the root cursor of a new, empty event log bound
// to taskID. Events carrying another task ID are rejected with [ErrTaskMismatch].
func NewTaskEventQueue(taskID string) *EventQueue {
	l := &eventLog{
		taskID:  taskID,
		cursors: make(map[*EventQueue]struct{}),
		notify:  make(chan struct{}),
		polling: make(chan struct{}),
	}
	q := &EventQueue{log: l}
	l.cursors[q] = struct{}{}
	return q
}

// Enqueue appends ev to the tail of the log without blocking.
//
// Enqueuing a final status event closes the queue, so no event can follow it.
// Returns [ErrQueueClosed] once the queue is closed.
func (q *EventQueue) Enqueue(ev a2a.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	l := q.log
	if id := ev.EventTaskID(); l.taskID != "" && id != "" && id != l.taskID {
		return fmt.Errorf("%w: event of task %q on queue of task %q", ErrTaskMismatch, id, l.taskID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrQueueClosed
	}
	l.events = append(l.events, ev)
	if a2a.IsFinalEvent(ev) {
		l.terminal = true
		l.closed = true
	}
	l.broadcast()

	return nil
}

// Dequeue returns the next event for this cursor.
//
// It blocks until an event is available, timeout elapses ([ErrQueueEmpty]), ctx
// is done, or the queue is closed with nothing left to read ([ErrQueueClosed]).
// A timeout <= 0 waits until ctx is done.
func (q *EventQueue) Dequeue(ctx context.Context, timeout time.Duration) (a2a.Event, error) {
	l := q.log
	l.markPolling()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		ev, wait, err := q.next()
		if ev != nil || err != nil {
			return ev, err
		}

		select {
		case <-wait:
		case <-expired:
			return nil, ErrQueueEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wait blocks until this cursor has an event to read or the queue is closed,
// without consuming anything. It returns [ErrQueueEmpty] when timeout elapses
// and the ctx error when ctx is done. A timeout <= 0 waits until ctx is done.
func (q *EventQueue) Wait(ctx context.Context, timeout time.Duration) error {
	q.log.markPolling()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		wait := q.readable()
		if wait == nil {
			return nil
		}

		select {
		case <-wait:
		case <-expired:
			return ErrQueueEmpty
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readable returns nil when a read on q would not block, and otherwise the
// channel signalled by the next change.
func (q *EventQueue) readable() <-chan struct{} {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if q.detached || l.closed || q.pos-l.base < len(l.events) {
		return nil
	}
	return l.notify
}

// DequeueNoWait returns the next event if one is buffered, [ErrQueueEmpty] if
// none is, or [ErrQueueClosed] once the queue is closed and drained.
func (q *EventQueue) DequeueNoWait() (a2a.Event, error) {
	q.log.markPolling()

	ev, _, err := q.next()
	if ev == nil && err == nil {
		return nil, ErrQueueEmpty
	}
	return ev, err
}

// next reads one event, or returns the channel signalled by the next change.
func (q *EventQueue) next() (a2a.Event, <-chan struct{}, error) {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if q.detached {
		return nil, nil, ErrQueueClosed
	}
	if idx := q.pos - l.base; idx < len(l.events) {
		ev := l.events[idx]
		q.pos++
		l.compact()
		return ev, nil, nil
	}
	if l.closed {
		q.detachLocked()
		return nil, nil, ErrQueueClosed
	}
	return nil, l.notify, nil
}

// Tap returns a new cursor over the same log.
//
// The cursor starts at the current buffered head: it replays every event that
// has not yet been read by all previously attached cursors, then follows new
// events. Returns [ErrQueueClosed] when the queue is closed.
func (q *EventQueue) Tap() (*EventQueue, error) {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrQueueClosed
	}
	child := &EventQueue{log: l, pos: l.base}
	l.cursors[child] = struct{}{}

	return child, nil
}

// Fork returns a new cursor positioned at the read position of q: it
// observes exactly the events q has not read yet, then follows new events.
// Returns [ErrQueueClosed] when the queue is closed or q is detached.
func (q *EventQueue) Fork() (*EventQueue, error) {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || q.detached {
		return nil, ErrQueueClosed
	}
	child := &EventQueue{log: l, pos: q.pos}
	l.cursors[child] = struct{}{}

	return child, nil
}

// Detach stops this cursor from reading further events and releases the
// events it was holding back. Other cursors are unaffected.
func (q *EventQueue) Detach() {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	q.detachLocked()
	l.compact()
}

func (q *EventQueue) detachLocked() {
	if q.detached {
		return
	}
	q.detached = true
	delete(q.log.cursors, q)
}

// Close closes the queue for every cursor. It is idempotent.
// Consumers drain the events still buffered before seeing [ErrQueueClosed].
func (q *EventQueue) Close() {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.broadcast()
}

// IsClosed reports whether the queue accepts no more events.
func (q *EventQueue) IsClosed() bool {
	q.log.mu.Lock()
	defer q.log.mu.Unlock()
	return q.log.closed
}

// HasTerminal reports whether a terminal status event has been enqueued.
func (q *EventQueue) HasTerminal() bool {
	q.log.mu.Lock()
	defer q.log.mu.Unlock()
	return q.log.terminal
}

// Len returns the number of events buffered for this cursor.
func (q *EventQueue) Len() int {
	l := q.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if q.detached {
		return 0
	}
	return l.base + len(l.events) - q.pos
}

// PollerStarted is closed once any cursor of the queue has started to dequeue.
func (q *EventQueue) PollerStarted() <-chan struct{} {
	return q.log.polling
}

// sameLog reports whether q and other are cursors of the same log.
func (q *EventQueue) sameLog(other *EventQueue) bool {
	return other != nil && q.log == other.log
}
