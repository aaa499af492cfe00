package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_FollowsHub(t *testing.T) {
	req := require.New(t)
	var running atomic.Bool
	h := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), running.Load, 5*time.Millisecond)

	status, err := h.Check(context.Background())
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	// When the hub starts, probes see it serving
	running.Store(true)
	req.Eventually(func() bool {
		status, err := h.Check(context.Background())
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	// When the hub stops, probes see it again as not serving
	running.Store(false)
	req.Eventually(func() bool {
		status, err := h.Check(context.Background())
		return err == nil && status == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
