// Package handler serves readiness over HTTP and the standard gRPC health protocol.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"user-directory/internal/health"
)

// Checker is the readiness probe used by the handlers.
type Checker interface {
	Check(ctx context.Context) health.Report
}

// Server publishes the checker's verdict through grpc.health.v1.
// The empty service name and ServiceName both follow the overall report.
type Server struct {
	checker Checker
	health  *grpchealth.Server
	log     *zap.Logger
}

// ServiceName is the gRPC health service name of the user directory.
const ServiceName = "user-directory"

// NewServer returns a Server that starts NOT_SERVING until the first check runs.
func NewServer(checker Checker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{checker: checker, health: hs, log: log}
}

// Register registers the health service with r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Refresh runs one check and updates the serving status. Returns the report.
func (s *Server) Refresh(ctx context.Context) health.Report {
	report := health.Report{Status: health.StatusUp, Checks: map[string]string{}}
	if s.checker != nil {
		report = s.checker.Check(ctx)
	}
	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("health check failed", zap.Any("checks", report.Checks))
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return report
}

// Run refreshes the status every interval until ctx is done, then marks the service as shutting down.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
