// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"context"
	"log/slog"

	grpclog "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

func callLogger(ctx context.Context, logger *slog.Logger, method string, labels ...any) *slog.Logger {
	labels = append([]any{"grpc_method", method}, labels...)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		labels = append(labels, "remote_addr", p.Addr.String())
	}
	return logger.With(labels...)
}

// UnaryServerInterceptor puts a call scoped logger in the context of unary calls.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (any, error) {
		return handler(Inject(ctx, callLogger(ctx, logger, info.FullMethod)), req)
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}

// StreamServerInterceptor does the same for streaming calls, such as health watches.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler,
	) error {
		ctx := ss.Context()
		l := callLogger(ctx, logger, info.FullMethod, "server_stream", info.IsServerStream)
		return handler(srv, &serverStream{ServerStream: ss, ctx: Inject(ctx, l)})
	}
}

// GRPCLogger adapts the context logger to the go-grpc-middleware logging interface.
func GRPCLogger() grpclog.Logger {
	return grpclog.LoggerFunc(func(ctx context.Context, lvl grpclog.Level, msg string, fields ...any) {
		Extract(ctx).Log(ctx, slog.Level(lvl), msg, fields...)
	})
}
