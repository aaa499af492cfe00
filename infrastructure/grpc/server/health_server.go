package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes ask about. The empty name reports the same status.
const ServiceName = "chat-realtime"

// HealthServer exposes the standard gRPC health service. It polls the hub
// and reports SERVING only while the hub runs.
type HealthServer struct {
	log      *slog.Logger
	health   *health.Server
	running  func() bool
	interval time.Duration
}

func NewHealthServer(log *slog.Logger, running func() bool, interval time.Duration) *HealthServer {
	h := &HealthServer{
		log:      log,
		health:   health.NewServer(),
		running:  running,
		interval: interval,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Check answers a probe in-process, the way a remote client would see it.
func (h *HealthServer) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Run keeps the reported status in step with the hub until ctx ends.
func (h *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.refresh()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			h.log.Debug("Health reporting stopped")
			return nil
		case <-ticker.C:
			h.refresh()
		}
	}
}

func (h *HealthServer) refresh() {
	if h.running() {
		h.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
}
