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

package a2a

// ProtocolVersion is the A2A protocol version advertised in agent cards.
const ProtocolVersion = "0.3.0"

// AgentCardWellKnownPath is the path every transport serves the agent card at.
const AgentCardWellKnownPath = "/.well-known/agent-card.json"

// Transport names advertised in agent cards.
const (
	TransportHTTPJSON = "HTTP+JSON"
	TransportGRPC     = "GRPC"
	TransportJSONRPC  = "JSONRPC"
)

// REST routes.
const (
	RESTPathMessageSend   = "/v1/message:send"
	RESTPathMessageStream = "/v1/message:stream"
	RESTPathTasks         = "/v1/tasks"
)

// Default input and output mode.
const DefaultMode = "text"
