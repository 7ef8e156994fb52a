package transport

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is reported alongside the overall ("") status.
const HealthService = "storefront.Orders"

func NewGRPCServer(healthServer *health.Server) *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	return srv
}

// WatchDatabase flips the health status with the outcome of periodic pings until ctx is done.
func WatchDatabase(ctx context.Context, healthServer *health.Server, db Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		if err := db.PingContext(pingCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()

		if status != last {
			log.WithField("status", status.String()).Info("health status changed")
			healthServer.SetServingStatus("", status)
			healthServer.SetServingStatus(HealthService, status)
			last = status
		}

		select {
		case <-ctx.Done():
			healthServer.Shutdown()
			return
		case <-ticker.C:
		}
	}
}
