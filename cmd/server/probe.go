package main

import (
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// chatService is the gRPC health service name tracking model reachability.
const chatService = "codemate.Chat"

type modelProber interface {
	Health(ctx context.Context) error
}

type statusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// watchModel probes the model service until ctx ends and mirrors the result
// into the gRPC health status. The overall server stays SERVING.
func watchModel(ctx context.Context, model modelProber, hs statusSetter, interval time.Duration) {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	last := healthpb.HealthCheckResponse_UNKNOWN
	probe := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := model.Health(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				slog.Warn("Model service unreachable", "error", err)
			}
		} else if last != status {
			slog.Info("Model service reachable")
		}
		last = status
		hs.SetServingStatus(chatService, status)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
