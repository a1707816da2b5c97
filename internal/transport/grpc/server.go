// Package grpc exposes the catalog's gRPC surface: the standard health service driven by store probes.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the server-wide "" entry.
const ServiceName = "catalog.ProductCatalog"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer publishes SERVING while the probe succeeds and NOT_SERVING otherwise.
type HealthServer struct {
	health   *health.Server
	probe    Pinger
	interval time.Duration
	logger   *slog.Logger
}

// NewHealthServer creates a health server probing every interval. The initial status is NOT_SERVING.
func NewHealthServer(probe Pinger, interval time.Duration, logger *slog.Logger) *HealthServer {
	h := &HealthServer{
		health:   health.NewServer(),
		probe:    probe,
		interval: interval,
		logger:   logger.With("component", "grpc-health"),
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe pings the store once and publishes the outcome.
func (h *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.probe.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Store probe failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(status)
	return status
}

// Run probes until ctx is done, then marks the server NOT_SERVING for good.
func (h *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return nil
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}
