// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
)

// Error is implemented by every protocol error of the A2A taxonomy.
type Error interface {
	error
	// Code returns the JSON-RPC error code of the error.
	Code() int
}

var (
	_ Error = (*JSONParseError)(nil)
	_ Error = (*InvalidRequestError)(nil)
	_ Error = (*InvalidParamsError)(nil)
	_ Error = (*MethodNotFoundError)(nil)
	_ Error = (*InternalError)(nil)
	_ Error = (*TaskNotFoundError)(nil)
	_ Error = (*TaskNotCancelableError)(nil)
)

// JSONParseError reports a payload that is not valid JSON.
type JSONParseError struct {
	Err error
}

func (e *JSONParseError) Error() string {
	if e.Err == nil {
		return "invalid JSON payload"
	}
	return "invalid JSON payload: " + e.Err.Error()
}

func (e *JSONParseError) Code() int     { return ErrorCodeJSONParse }
func (e *JSONParseError) Unwrap() error { return e.Err }

// InvalidRequestError reports a request envelope that is not valid.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	if e.Reason == "" {
		return "invalid request"
	}
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Code() int { return ErrorCodeInvalidRequest }

// InvalidParamsError reports malformed method parameters.
type InvalidParamsError struct {
	Reason string
}

func (e *InvalidParamsError) Error() string {
	if e.Reason == "" {
		return "invalid params"
	}
	return "invalid params: " + e.Reason
}

func (e *InvalidParamsError) Code() int { return ErrorCodeInvalidParams }

// MethodNotFoundError reports an unknown RPC method or route.
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

func (e *MethodNotFoundError) Code() int { return ErrorCodeMethodNotFound }

// InternalError wraps an unexpected agent or transport fault.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return "internal error"
	}
	return "internal error: " + e.Err.Error()
}

func (e *InternalError) Code() int     { return ErrorCodeInternal }
func (e *InternalError) Unwrap() error { return e.Err }

// TaskNotFoundError reports an unknown task ID.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

func (e *TaskNotFoundError) Code() int { return ErrorCodeTaskNotFound }

// TaskNotCancelableError reports a cancel request for a task in a terminal state.
type TaskNotCancelableError struct {
	TaskID string
	State  TaskState
}

func (e *TaskNotCancelableError) Error() string {
	return fmt.Sprintf("task %s cannot be canceled in state %s", e.TaskID, e.State)
}

func (e *TaskNotCancelableError) Code() int { return ErrorCodeTaskNotCancelable }

// CodeOf returns the JSON-RPC error code for err.
// Errors outside the taxonomy map to [ErrorCodeInternal].
func CodeOf(err error) int {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ErrorCodeInternal
}

// IsTaskNotFound reports whether err is a [TaskNotFoundError].
func IsTaskNotFound(err error) bool {
	var e *TaskNotFoundError
	return errors.As(err, &e)
}
