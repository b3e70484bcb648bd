package server

import (
	"log/slog"
	"net"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes ask for; the empty name reports the same status.
const ServiceName = "dwilive.Chat"

// HealthServer exposes the standard gRPC health service for orchestration probes.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	hs := &HealthServer{server: s, health: h, log: log}
	hs.SetServing(false)
	return hs
}

func (h *HealthServer) Serve(listener net.Listener) error {
	for serviceName := range h.server.GetServiceInfo() {
		h.log.Debug("📡 gRPC exposed services", "name", serviceName)
	}
	return h.server.Serve(listener)
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// GracefulStop reports NOT_SERVING to watchers, then drains pending calls.
func (h *HealthServer) GracefulStop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
