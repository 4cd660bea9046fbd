// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"github.com/google/uuid"
)

// NewArtifact returns an artifact with a generated ID.
func NewArtifact(name, description string, parts ...Part) Artifact {
	return Artifact{
		ArtifactID:  uuid.NewString(),
		Name:        name,
		Description: description,
		Parts:       parts,
	}
}

// NewTextArtifact returns an artifact holding a single text part.
func NewTextArtifact(name, text string) Artifact {
	return NewArtifact(name, "", NewTextPart(text))
}
