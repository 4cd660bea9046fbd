// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"

	a2a "github.com/go-a2a/a2a-server"
)

var errHandlerClosed = &a2a.InternalError{Err: errors.New("request handler is closed")}

// toA2AError returns err unchanged when it belongs to the A2A error taxonomy
// or is a context error, and wraps it in an [a2a.InternalError] otherwise.
func toA2AError(err error) error {
	if err == nil {
		return nil
	}
	var e a2a.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &a2a.InternalError{Err: err}
}
