package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	healthhandler "user-directory/internal/health/handler"
	"user-directory/internal/server/interceptors"
)

// NewGRPCServer returns a gRPC server instrumented with otelgrpc that serves grpc.health.v1.
// Unary calls pass through panic recovery and request logging.
func NewGRPCServer(health *healthhandler.Server, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(log),
			interceptors.LoggingUnary(log, nil),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	if health != nil {
		health.Register(s)
	}
	return s
}
