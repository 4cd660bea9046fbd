// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// NewTask creates a SUBMITTED task for msg.
//
// The task and context IDs are taken from msg when set and generated otherwise.
// msg is stamped with the resulting IDs and becomes the first history entry.
func NewTask(msg *Message) *Task {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	msg.TaskID = taskID
	msg.ContextID = contextID

	return &Task{
		Kind:      KindTask,
		ID:        taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: time.Now().UTC(),
		},
		History: []Message{*msg.Clone()},
	}
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Status = t.Status.clone()
	if t.Artifacts != nil {
		c.Artifacts = make([]Artifact, len(t.Artifacts))
		for i := range t.Artifacts {
			c.Artifacts[i] = *t.Artifacts[i].Clone()
		}
	}
	if t.History != nil {
		c.History = make([]Message, len(t.History))
		for i := range t.History {
			c.History[i] = *t.History[i].Clone()
		}
	}
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}

// WithHistoryLength returns a copy of t keeping only the most recent n history entries.
// n <= 0 keeps the full history.
func (t *Task) WithHistoryLength(n int) *Task {
	c := t.Clone()
	if n > 0 && len(c.History) > n {
		c.History = c.History[len(c.History)-n:]
	}
	return c
}

// Apply returns a new snapshot of t with ev folded in.
//
// Status events replace the status and append the status message (if any) to
// the history. Artifact events append a new artifact, or extend the parts of an
// existing artifact with the same ID when Append is set. Message events are
// appended to the history.
func (t *Task) Apply(ev Event) *Task {
	next := t.Clone()
	switch e := ev.(type) {
	case *TaskStatusUpdateEvent:
		status := e.Status.clone()
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now().UTC()
		}
		if status.Message != nil {
			next.History = append(next.History, *status.Message.Clone())
		}
		next.Status = status
	case *TaskArtifactUpdateEvent:
		next.Artifacts = mergeArtifact(next.Artifacts, e.Artifact, e.Append)
	case *Message:
		next.History = append(next.History, *e.Clone())
	}
	return next
}

func mergeArtifact(artifacts []Artifact, a Artifact, appendParts bool) []Artifact {
	a = *a.Clone()
	if appendParts {
		for i := range artifacts {
			if artifacts[i].ArtifactID == a.ArtifactID {
				artifacts[i].Parts = append(artifacts[i].Parts, a.Parts...)
				return artifacts
			}
		}
		return append(artifacts, a)
	}
	for i := range artifacts {
		if artifacts[i].ArtifactID == a.ArtifactID {
			artifacts[i] = a
			return artifacts
		}
	}
	return append(artifacts, a)
}

func (s TaskStatus) clone() TaskStatus {
	c := s
	c.Message = s.Message.Clone()
	return c
}

// Clone returns a deep copy of a.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = cloneParts(a.Parts)
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = p
		out[i].Data = maps.Clone(p.Data)
		out[i].Metadata = maps.Clone(p.Metadata)
		if p.File != nil {
			f := *p.File
			f.Bytes = slices.Clone(p.File.Bytes)
			out[i].File = &f
		}
	}
	return out
}
