// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "slices"

// AgentCapabilities declares optional protocol features supported by an agent.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes a unit of capability an agent can perform.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitzero"`
	InputModes  []string `json:"inputModes,omitzero"`
	OutputModes []string `json:"outputModes,omitzero"`
}

// AgentInterface is a transport endpoint of an agent.
type AgentInterface struct {
	URL       string `json:"url"`
	Transport string `json:"transport"`
}

// AgentCard is the static discovery document of an agent.
type AgentCard struct {
	ProtocolVersion      string            `json:"protocolVersion"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	URL                  string            `json:"url"`
	PreferredTransport   string            `json:"preferredTransport,omitzero"`
	AdditionalInterfaces []AgentInterface  `json:"additionalInterfaces,omitzero"`
	Version              string            `json:"version"`
	Capabilities         AgentCapabilities `json:"capabilities"`
	DefaultInputModes    []string          `json:"defaultInputModes"`
	DefaultOutputModes   []string          `json:"defaultOutputModes"`
	Skills               []AgentSkill      `json:"skills"`
}

// Clone returns a deep copy of c.
func (c *AgentCard) Clone() *AgentCard {
	if c == nil {
		return nil
	}
	cc := *c
	cc.AdditionalInterfaces = slices.Clone(c.AdditionalInterfaces)
	cc.DefaultInputModes = slices.Clone(c.DefaultInputModes)
	cc.DefaultOutputModes = slices.Clone(c.DefaultOutputModes)
	cc.Skills = make([]AgentSkill, len(c.Skills))
	for i, s := range c.Skills {
		s.Tags = slices.Clone(s.Tags)
		s.Examples = slices.Clone(s.Examples)
		s.InputModes = slices.Clone(s.InputModes)
		s.OutputModes = slices.Clone(s.OutputModes)
		cc.Skills[i] = s
	}
	return &cc
}

// ForTransport returns a copy of c whose primary URL and transport point at one endpoint.
func (c *AgentCard) ForTransport(transport, url string) *AgentCard {
	cc := c.Clone()
	cc.URL = url
	cc.PreferredTransport = transport
	return cc
}
