// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"strings"

	"github.com/google/uuid"
)

// NewUserTextMessage returns a user message with a single text part.
func NewUserTextMessage(text string) *Message {
	return &Message{
		Kind:      KindMessage,
		Role:      RoleUser,
		Parts:     []Part{NewTextPart(text)},
		MessageID: uuid.NewString(),
	}
}

// NewAgentTextMessage returns an agent message with a single text part bound to a task.
func NewAgentTextMessage(taskID, contextID, text string) *Message {
	return NewAgentPartsMessage(taskID, contextID, NewTextPart(text))
}

// NewAgentPartsMessage returns an agent message carrying parts bound to a task.
func NewAgentPartsMessage(taskID, contextID string, parts ...Part) *Message {
	return &Message{
		Kind:      KindMessage,
		Role:      RoleAgent,
		Parts:     parts,
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Parts = cloneParts(m.Parts)
	c.Metadata = maps.Clone(m.Metadata)
	return &c
}

// Text joins the text parts of m with newlines.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return TextOf(m.Parts)
}

// TextOf joins the text parts of parts with newlines.
func TextOf(parts []Part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == PartKindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
