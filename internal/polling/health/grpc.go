package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer serves the standard gRPC health protocol. Each resource is a
// service named "<resource>:<id>"; the empty service name is the whole system.
type GRPCServer struct {
	monitor  *Monitor
	health   *grpchealth.Server
	server   *grpc.Server
	port     int
	interval time.Duration
}

// NewGRPCServer creates a gRPC health server refreshed every interval.
func NewGRPCServer(monitor *Monitor, port int, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCServer{
		monitor:  monitor,
		health:   hs,
		server:   srv,
		port:     port,
		interval: interval,
	}
}

// Sync copies the monitor's view into the serving statuses.
func (s *GRPCServer) Sync(ctx context.Context) {
	resources := s.monitor.CheckHealth(ctx)
	for key, r := range resources {
		s.health.SetServingStatus(key, servingStatus(r.Status))
	}
	s.health.SetServingStatus("", servingStatus(Aggregate(resources)))
}

func servingStatus(status SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if status == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Start listens on the configured port and blocks until ctx is done.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on %d: %w", s.port, err)
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Sync(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sync(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	slog.Info("gRPC health server listening", "port", s.port)
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Stop shuts the server down and marks everything not serving.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
