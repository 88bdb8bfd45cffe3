package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "user-service/internal/adapter/grpc"
	"user-service/internal/adapter/grpc/middleware"
	"user-service/pkg/logger"
)

// SetupGRPC creates and configures the gRPC server
func SetupGRPC(deps Dependencies, l *zap.Logger) *grpc.Server {
	// Request ID first so rate limit logs carry it
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.NewRateLimiter(deps.RateLimiter, l).UnaryInterceptor(),
		),
	)
	grpcadapter.RegisterUserServiceServer(grpcServer, deps.GRPCService)

	hs := health.NewServer()
	hs.SetServingStatus(grpcadapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return grpcServer
}
