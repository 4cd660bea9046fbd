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
	"errors"
	"log/slog"
	"time"

	a2a "github.com/go-a2a/a2a-server"
)

// EventConsumer reads events from one queue cursor.
type EventConsumer struct {
	queue       *EventQueue
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewEventConsumer returns a consumer for queue. A pollTimeout <= 0 uses [DefaultPollTimeout].
func NewEventConsumer(queue *EventQueue, pollTimeout time.Duration, logger *slog.Logger) *EventConsumer {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventConsumer{
		queue:       queue,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// ConsumeOne returns the next buffered event without waiting.
func (c *EventConsumer) ConsumeOne() (a2a.Event, error) {
	return c.queue.DequeueNoWait()
}

// Next blocks for the next event, polling until ctx is done.
// It returns [ErrQueueClosed] at end of stream.
func (c *EventConsumer) Next(ctx context.Context) (a2a.Event, error) {
	for {
		ev, err := c.queue.Dequeue(ctx, c.pollTimeout)
		switch {
		case err == nil:
			return ev, nil
		case errors.Is(err, ErrQueueEmpty):
			continue
		default:
			return nil, err
		}
	}
}

// ConsumeAll forwards every event to the returned channel until the final
// event has been delivered, the queue is closed, or ctx is done. The channel
// is closed afterwards and the cursor is detached.
func (c *EventConsumer) ConsumeAll(ctx context.Context) <-chan a2a.Event {
	events := make(chan a2a.Event)

	go func() {
		defer close(events)
		defer c.queue.Detach()

		for {
			ev, err := c.Next(ctx)
			if err != nil {
				if !errors.Is(err, ErrQueueClosed) {
					c.logger.DebugContext(ctx, "stop consuming", "error", err)
				}
				return
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}

			if a2a.IsFinalEvent(ev) {
				return
			}
		}
	}()

	return events
}
