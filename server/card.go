// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"strings"

	a2a "github.com/go-a2a/a2a-server"
)

// AgentInfo describes the agent advertised in agent cards.
type AgentInfo interface {
	Name() string
	Description() string
	Version() string
	SupportsStreaming() bool
}

// BuildAgentCard returns the agent card served by the protocol server at url.
// The JSON-RPC card keeps the plain agent name; other protocols suffix it.
// Each entry of interfaces is advertised as an additional interface.
func BuildAgentCard(agent AgentInfo, protocol Protocol, url string, interfaces ...a2a.AgentInterface) *a2a.AgentCard {
	name := agent.Name()
	if protocol != ProtocolJSONRPC {
		name += " (" + protocol.String() + ")"
	}

	card := &a2a.AgentCard{
		ProtocolVersion:    a2a.ProtocolVersion,
		Name:               name,
		Description:        agent.Description(),
		URL:                url,
		PreferredTransport: protocol.Transport(),
		Version:            agent.Version(),
		Capabilities: a2a.AgentCapabilities{
			Streaming:              agent.SupportsStreaming(),
			StateTransitionHistory: true,
		},
		DefaultInputModes:  []string{a2a.DefaultMode},
		DefaultOutputModes: []string{a2a.DefaultMode},
		Skills: []a2a.AgentSkill{
			{
				ID:          "chat",
				Name:        "Chat",
				Description: "Chat with the agent via " + protocol.String(),
				Tags:        []string{"chat", strings.ToLower(protocol.String())},
				Examples:    []string{"Hello", "What can you do?"},
				InputModes:  []string{a2a.DefaultMode},
				OutputModes: []string{a2a.DefaultMode},
			},
		},
	}
	if len(interfaces) > 0 {
		card.AdditionalInterfaces = append(card.AdditionalInterfaces, interfaces...)
	}
	return card
}

// Interfaces returns the additional interface entries of the protocols in
// ports, listening on host, in [Protocols] order.
func Interfaces(host string, ports map[Protocol]int) []a2a.AgentInterface {
	out := make([]a2a.AgentInterface, 0, len(ports))
	for _, p := range Protocols {
		port, ok := ports[p]
		if !ok {
			continue
		}
		out = append(out, a2a.AgentInterface{
			URL:       URL(host, port),
			Transport: p.Transport(),
		})
	}
	return out
}
