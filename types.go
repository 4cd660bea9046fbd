// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a provides the Agent-to-Agent (A2A) data model shared by the task
// execution engine and its REST, gRPC and JSON-RPC transports.
package a2a

import (
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
)

// Role identifies the sender of a [Message].
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// TaskState is the lifecycle state of a [Task].
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// IsTerminal reports whether no further events may follow s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// PartKind discriminates the content carried by a [Part].
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
	PartKindFile PartKind = "file"
)

// FileContent is a file referenced by URI or embedded as bytes.
type FileContent struct {
	Name     string `json:"name,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
	URI      string `json:"uri,omitzero"`
	Bytes    []byte `json:"bytes,omitzero"`
}

// Part is a single piece of typed content inside a [Message] or [Artifact].
type Part struct {
	Kind     PartKind       `json:"kind"`
	Text     string         `json:"text,omitzero"`
	Data     map[string]any `json:"data,omitzero"`
	File     *FileContent   `json:"file,omitzero"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// NewTextPart returns a text [Part].
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// NewDataPart returns a structured data [Part].
func NewDataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// Message is a single turn exchanged between a user and an agent.
type Message struct {
	Kind      string         `json:"kind"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	ContextID string         `json:"contextId,omitzero"`
	TaskID    string         `json:"taskId,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

// MarshalJSON always writes the "message" kind discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	p := plain(m)
	p.Kind = KindMessage
	return json.Marshal(p)
}

// Artifact is a named bundle of output parts produced by an agent.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitzero"`
	Description string         `json:"description,omitzero"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitzero"`
}

// TaskStatus is the current state of a task with an optional agent message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Task is a unit of agent work.
//
// A Task value is a snapshot: updates produce a new value with the same ID.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitzero"`
	History   []Message      `json:"history,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

// MarshalJSON always writes the "task" kind discriminator.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	p := plain(t)
	p.Kind = KindTask
	return json.Marshal(p)
}

// MessageSendConfiguration tunes a send-message call.
type MessageSendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitzero"`
	HistoryLength       int      `json:"historyLength,omitzero"`
	Blocking            *bool    `json:"blocking,omitzero"`
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitzero"`
	Metadata      map[string]any            `json:"metadata,omitzero"`
}

// Validate reports an [InvalidParamsError] when p cannot start a task.
func (p *MessageSendParams) Validate() error {
	if p == nil || p.Message == nil {
		return &InvalidParamsError{Reason: "message is required"}
	}
	if len(p.Message.Parts) == 0 {
		return &InvalidParamsError{Reason: "message must contain at least one part"}
	}
	if p.Message.Role != "" && p.Message.Role != RoleUser {
		return &InvalidParamsError{Reason: "message role must be " + string(RoleUser)}
	}
	for i, part := range p.Message.Parts {
		switch part.Kind {
		case PartKindText, PartKindData, PartKindFile:
		default:
			return &InvalidParamsError{Reason: "unsupported part kind " + string(part.Kind) + " at index " + strconv.Itoa(i)}
		}
	}
	return nil
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"historyLength,omitzero"`
}

// TaskIDParams are the parameters of tasks/cancel and tasks/resubscribe.
type TaskIDParams struct {
	ID string `json:"id"`
}
