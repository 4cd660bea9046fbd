// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"

	"github.com/go-a2a/a2a-server/server/event"
)

// StoreStateProvider answers task lifecycle questions from a [TaskStore].
type StoreStateProvider struct {
	Store TaskStore
}

var _ event.TaskStateProvider = StoreStateProvider{}

// IsTaskActive reports whether the stored task exists and is not terminal.
func (p StoreStateProvider) IsTaskActive(ctx context.Context, taskID string) bool {
	t, err := p.Store.Get(ctx, taskID)
	return err == nil && !t.Status.State.IsTerminal()
}

// IsTaskFinalized reports whether the stored task reached a terminal state.
func (p StoreStateProvider) IsTaskFinalized(ctx context.Context, taskID string) bool {
	t, err := p.Store.Get(ctx, taskID)
	return err == nil && t.Status.State.IsTerminal()
}
