package beacon

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"beacon/pkg/logger"
)

// ServiceName is the health service name probes ask for
const ServiceName = "beacon.v1.Beacon"

// Probe checks one dependency
type Probe func(ctx context.Context) error

// HealthChecker keeps the gRPC health status in line with the dependencies
type HealthChecker struct {
	server   *health.Server
	probes   map[string]Probe
	interval time.Duration
	logger   *logger.Logger
}

// RegisterHealthServer registers the gRPC health check service
func RegisterHealthServer(grpcServer *grpc.Server, probes map[string]Probe, interval time.Duration, log *logger.Logger) *HealthChecker {
	hc := &HealthChecker{
		server:   health.NewServer(),
		probes:   probes,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
	hc.set(grpc_health_v1.HealthCheckResponse_SERVING)

	grpc_health_v1.RegisterHealthServer(grpcServer, hc.server)
	return hc
}

// Run re-checks the probes every interval until ctx is done, then reports
// NOT_SERVING so load balancers drain the instance.
func (hc *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		hc.Check(ctx)

		select {
		case <-ctx.Done():
			hc.server.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

// Check runs every probe once and updates the serving status
func (hc *HealthChecker) Check(ctx context.Context) bool {
	healthy := true
	for name, probe := range hc.probes {
		if probe == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe(pctx)
		cancel()
		if err != nil {
			hc.logger.Warn().Err(err).Str("dependency", name).Msg("health probe failed")
			healthy = false
		}
	}

	if healthy {
		hc.set(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		hc.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

func (hc *HealthChecker) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	hc.server.SetServingStatus("", status)
	hc.server.SetServingStatus(ServiceName, status)
}
