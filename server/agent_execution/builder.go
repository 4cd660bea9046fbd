// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"

	a2a "github.com/go-a2a/a2a-server"
	"github.com/go-a2a/a2a-server/server/task"
)

// SimpleRequestContextBuilder is the default [RequestContextBuilder].
// It can be configured to populate related tasks from a task store.
type SimpleRequestContextBuilder struct {
	store                task.TaskStore
	populateRelatedTasks bool
}

var _ RequestContextBuilder = (*SimpleRequestContextBuilder)(nil)

// NewSimpleRequestContextBuilder returns a builder that does not look up related tasks.
func NewSimpleRequestContextBuilder() *SimpleRequestContextBuilder {
	return &SimpleRequestContextBuilder{}
}

// NewSimpleRequestContextBuilderWithRelatedTasks returns a builder that loads
// the other tasks of the same context from store.
func NewSimpleRequestContextBuilderWithRelatedTasks(store task.TaskStore) *SimpleRequestContextBuilder {
	return &SimpleRequestContextBuilder{
		store:                store,
		populateRelatedTasks: store != nil,
	}
}

// Build implements [RequestContextBuilder].
func (b *SimpleRequestContextBuilder) Build(ctx context.Context, params *a2a.MessageSendParams, current *a2a.Task) (*RequestContext, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.New("current task cannot be nil")
	}

	rc := &RequestContext{
		TaskID:        current.ID,
		ContextID:     current.ContextID,
		Message:       params.Message.Clone(),
		Task:          current.Clone(),
		Configuration: params.Configuration,
		Metadata:      params.Metadata,
	}
	rc.Message.TaskID = current.ID
	rc.Message.ContextID = current.ContextID

	if b.populateRelatedTasks {
		tasks, err := b.store.List(ctx, current.ContextID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list related tasks: %w", err)
		}
		for _, t := range tasks {
			if t.ID != current.ID {
				rc.RelatedTasks = append(rc.RelatedTasks, t)
			}
		}
	}

	return rc, nil
}
