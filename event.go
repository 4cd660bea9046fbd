// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Kind discriminators written on the wire.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is an incremental change to a task.
//
// The set of implementations is closed: [*Message], [*TaskStatusUpdateEvent]
// and [*TaskArtifactUpdateEvent].
type Event interface {
	// EventKind returns the wire discriminator of the event.
	EventKind() string
	// EventTaskID returns the ID of the task the event belongs to.
	EventTaskID() string

	isEvent()
}

var (
	_ Event = (*Message)(nil)
	_ Event = (*TaskStatusUpdateEvent)(nil)
	_ Event = (*TaskArtifactUpdateEvent)(nil)
)

func (m *Message) EventKind() string   { return KindMessage }
func (m *Message) EventTaskID() string { return m.TaskID }
func (*Message) isEvent()              {}

// TaskStatusUpdateEvent reports a status transition.
type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

func (e *TaskStatusUpdateEvent) EventKind() string   { return KindStatusUpdate }
func (e *TaskStatusUpdateEvent) EventTaskID() string { return e.TaskID }
func (*TaskStatusUpdateEvent) isEvent()              {}

// MarshalJSON always writes the "status-update" kind discriminator.
func (e TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type plain TaskStatusUpdateEvent
	p := plain(e)
	p.Kind = KindStatusUpdate
	return json.Marshal(p)
}

// TaskArtifactUpdateEvent carries one artifact increment.
type TaskArtifactUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  Artifact       `json:"artifact"`
	Append    bool           `json:"append,omitzero"`
	LastChunk bool           `json:"lastChunk,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

func (e *TaskArtifactUpdateEvent) EventKind() string   { return KindArtifactUpdate }
func (e *TaskArtifactUpdateEvent) EventTaskID() string { return e.TaskID }
func (*TaskArtifactUpdateEvent) isEvent()              {}

// MarshalJSON always writes the "artifact-update" kind discriminator.
func (e TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type plain TaskArtifactUpdateEvent
	p := plain(e)
	p.Kind = KindArtifactUpdate
	return json.Marshal(p)
}

// IsFinalEvent reports whether ev ends the event stream of its task.
// Only a terminal status does; a Final flag on a non-terminal status is ignored.
func IsFinalEvent(ev Event) bool {
	e, ok := ev.(*TaskStatusUpdateEvent)
	if !ok {
		return false
	}
	return e.Status.State.IsTerminal()
}

// NewStatusUpdateEvent returns a status event for task; final is forced for terminal states.
func NewStatusUpdateEvent(taskID, contextID string, status TaskStatus, final bool) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    status,
		Final:     final || status.State.IsTerminal(),
	}
}

// NewArtifactUpdateEvent returns an artifact event for task.
func NewArtifactUpdateEvent(taskID, contextID string, artifact Artifact, append bool) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		Kind:      KindArtifactUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  artifact,
		Append:    append,
	}
}

// UnmarshalEvent decodes a wire event using its kind discriminator.
func UnmarshalEvent(data []byte) (Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event kind: %w", err)
	}

	var ev Event
	switch head.Kind {
	case KindMessage:
		ev = new(Message)
	case KindStatusUpdate:
		ev = new(TaskStatusUpdateEvent)
	case KindArtifactUpdate:
		ev = new(TaskArtifactUpdateEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Kind, err)
	}
	return ev, nil
}
