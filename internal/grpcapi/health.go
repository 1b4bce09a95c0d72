// Package grpcapi serves the standard gRPC health protocol so that load
// balancers and orchestrators can probe the bureau without HTTP.
package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name reported to per-service health checks.
const ServiceName = "bureau-api"

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer answers grpc.health.v1.Health/Check from a backend ping.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer

	backend Pinger
	timeout time.Duration
}

// NewHealthServer creates the health service. A nil backend is always serving.
func NewHealthServer(backend Pinger) *HealthServer {
	return &HealthServer{backend: backend, timeout: 2 * time.Second}
}

// Check returns SERVING when the backend answers. An unreachable backend is
// reported as a gRPC Unavailable error.
func (s *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.backend.Ping(ctx); err != nil {
			return nil, status.Errorf(codes.Unavailable, "not ready: %v", err)
		}
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

// NewServer builds a gRPC server with the health service registered and
// every call logged.
func NewServer(health *HealthServer, logger *slog.Logger) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(logCalls(logger)))
	grpc_health_v1.RegisterHealthServer(srv, health)
	return srv
}

func logCalls(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.LogAttrs(ctx, slog.LevelDebug, "grpc_complete",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
		return resp, err
	}
}
