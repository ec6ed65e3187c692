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

package server

import (
	"log/slog"
	"net"

	"github.com/go-dataspace/dsp-engine/logging"
	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthServer serves the standard gRPC health service for orchestrators.
type healthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

func newHealthServer(logger *slog.Logger) *healthServer {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logger),
			grpclogging.UnaryServerInterceptor(logging.GRPCLogger()),
			recovery.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(logger),
			grpclogging.StreamServerInterceptor(logging.GRPCLogger()),
			recovery.StreamServerInterceptor(),
		),
	)
	h := health.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &healthServer{grpc: srv, health: h}
}

func (s *healthServer) serve(l net.Listener) error {
	return s.grpc.Serve(l)
}

func (s *healthServer) setServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *healthServer) stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
