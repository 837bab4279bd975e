package beacon

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"beacon/pkg/logger"
)

func TestHealthChecker(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()

	var failing error
	hc := RegisterHealthServer(srv, map[string]Probe{
		"database": func(ctx context.Context) error { return failing },
		"redis":    nil,
	}, time.Minute, logger.NewNop())

	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)
	ctx := context.Background()

	status := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status())

	failing = errors.New("connection refused")
	assert.False(t, hc.Check(ctx))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, status())

	failing = nil
	assert.True(t, hc.Check(ctx))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status())
}
