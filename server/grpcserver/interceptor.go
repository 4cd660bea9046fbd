// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package grpcserver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recoverUnary turns a panic in a unary handler into an INTERNAL status.
func recoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Errorf(codes.Internal, "handler panicked: %v", r)
			}
		}()
		return handler(ctx, req)
	}
}

// recoverStream turns a panic in a stream handler into an INTERNAL status.
func recoverStream(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ss.Context(), "handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Errorf(codes.Internal, "handler panicked: %v", r)
			}
		}()
		return handler(srv, ss)
	}
}
