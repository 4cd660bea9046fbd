// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"context"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-server"
)

// MethodFunc handles the params of one JSON-RPC method and returns its result.
type MethodFunc func(ctx context.Context, params jsontext.Value) (any, error)

// MethodRouter routes JSON-RPC requests to method handlers.
type MethodRouter struct {
	methods map[string]MethodFunc
}

// NewMethodRouter creates a new MethodRouter.
func NewMethodRouter() *MethodRouter {
	return &MethodRouter{
		methods: make(map[string]MethodFunc),
	}
}

// RegisterMethod registers a method handler.
func (r *MethodRouter) RegisterMethod(method string, fn MethodFunc) {
	r.methods[method] = fn
}

// Has reports whether method is registered.
func (r *MethodRouter) Has(method string) bool {
	_, ok := r.methods[method]
	return ok
}

// Route routes a JSON-RPC request to the appropriate handler.
func (r *MethodRouter) Route(ctx context.Context, req *a2a.JSONRPCRequest) *a2a.JSONRPCResponse {
	fn, ok := r.methods[req.Method]
	if !ok {
		return a2a.NewJSONRPCErrorResponse(req.ID, &a2a.MethodNotFoundError{Method: req.Method})
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		return a2a.NewJSONRPCErrorResponse(req.ID, err)
	}
	return a2a.NewJSONRPCResult(req.ID, result)
}

// validateRequest checks the JSON-RPC 2.0 envelope of req. An invalid id is
// cleared so the error response carries a null id.
func validateRequest(req *a2a.JSONRPCRequest) error {
	if req.JSONRPC != a2a.JSONRPCVersion {
		return &a2a.InvalidRequestError{Reason: `jsonrpc must be "2.0"`}
	}
	if req.Method == "" {
		return &a2a.InvalidRequestError{Reason: "method is required"}
	}
	if len(req.ID) > 0 {
		switch req.ID.Kind() {
		case '"', '0', 'n':
		default:
			req.ID = nil
			return &a2a.InvalidRequestError{Reason: "id must be a string, number or null"}
		}
	}
	return nil
}

// decodeParams decodes the params member of a request into v.
func decodeParams(params jsontext.Value, v any) error {
	if len(params) == 0 || params.Kind() == 'n' {
		return &a2a.InvalidParamsError{Reason: "params are required"}
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &a2a.InvalidParamsError{Reason: err.Error()}
	}
	return nil
}
