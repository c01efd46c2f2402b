package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/workers"
)

type switchableHealth struct {
	healthy atomic.Bool
}

func (h *switchableHealth) Health() *workers.HealthStatus {
	return &workers.HealthStatus{Healthy: h.healthy.Load(), Timestamp: time.Now()}
}

func TestHealthFollowsWorkerPool(t *testing.T) {
	reporter := &switchableHealth{}
	reporter.healthy.Store(true)

	lis := bufconn.Listen(1 << 20)
	srv, err := NewServer(&Config{
		Listener:       lis,
		Health:         reporter,
		HealthInterval: 10 * time.Millisecond,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	reporter.healthy.Store(false)

	require.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}
