// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package grpcserver

import (
	"context"
	"errors"

	"github.com/go-json-experiment/json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	a2a "github.com/go-a2a/a2a-server"
)

// ToStruct converts v into a [structpb.Struct] through its JSON document.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FromStruct decodes the JSON document held by s into v.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// decodeRequest decodes a request payload, reporting failures as invalid params.
func decodeRequest(s *structpb.Struct, v any) error {
	if err := FromStruct(s, v); err != nil {
		return &a2a.InvalidParamsError{Reason: err.Error()}
	}
	return nil
}

// Code returns the gRPC status code answering err.
func Code(err error) codes.Code {
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}

	switch a2a.CodeOf(err) {
	case a2a.ErrorCodeJSONParse, a2a.ErrorCodeInvalidRequest, a2a.ErrorCodeInvalidParams:
		return codes.InvalidArgument
	case a2a.ErrorCodeTaskNotFound:
		return codes.NotFound
	case a2a.ErrorCodeTaskNotCancelable:
		return codes.FailedPrecondition
	case a2a.ErrorCodeMethodNotFound:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}
