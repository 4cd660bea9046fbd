// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"

	"github.com/go-json-experiment/json/jsontext"
)

// JSONRPCVersion is the only supported JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	ErrorCodeJSONParse      = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternal       = -32603
)

// A2A specific error codes.
const (
	ErrorCodeTaskNotFound      = -32001
	ErrorCodeTaskNotCancelable = -32002
)

// JSON-RPC methods served by the JSON-RPC transport.
const (
	MethodMessageSend      = "message/send"
	MethodMessageStream    = "message/stream"
	MethodTasksGet         = "tasks/get"
	MethodTasksCancel      = "tasks/cancel"
	MethodTasksResubscribe = "tasks/resubscribe"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
//
// ID is kept as raw JSON so string, number and null IDs round-trip unchanged.
type JSONRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// JSONRPCError is the error member of a JSON-RPC 2.0 response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitzero"`
}

func (e *JSONRPCError) Error() string { return e.Message }

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Result  any            `json:"result,omitzero"`
	Error   *JSONRPCError  `json:"error,omitzero"`
}

// NewJSONRPCResult returns a success response for id.
func NewJSONRPCResult(id jsontext.Value, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: nullID(id), Result: result}
}

// NewJSONRPCErrorResponse returns an error response for id built from err.
func NewJSONRPCErrorResponse(id jsontext.Value, err error) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: nullID(id), Error: ToJSONRPCError(err)}
}

// ToJSONRPCError converts err into a JSON-RPC error object.
func ToJSONRPCError(err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &JSONRPCError{Code: CodeOf(err), Message: err.Error()}
}

func nullID(id jsontext.Value) jsontext.Value {
	if len(id) == 0 {
		return jsontext.Value("null")
	}
	return id
}
