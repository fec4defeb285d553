package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/metric"
)

// waitForHealthy waits for a service to become healthy with timeout
func waitForHealthy(service Service, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if service.IsHealthy() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// waitForCondition polls fn until it returns true or the timeout expires
func waitForCondition(fn func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestService_Creation(t *testing.T) {
	svc := NewBaseService("test-service",
		WithMetrics(metric.NewMetricsRegistry()))

	assert.NotNil(t, svc)
	assert.Equal(t, "test-service", svc.Name())
	assert.Equal(t, StatusStopped, svc.Status())
	assert.False(t, svc.IsHealthy())
	assert.NotNil(t, svc.Logger())
}

func TestService_Lifecycle(t *testing.T) {
	svc := NewBaseService("test-service",
		WithMetrics(metric.NewMetricsRegistry()),
		WithHealthInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := svc.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, svc.Status())

	// Starting twice is a no-op.
	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, StatusRunning, svc.Status())

	err = svc.Stop(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, svc.Status())
	assert.False(t, svc.IsHealthy())

	// Stopping twice is a no-op.
	require.NoError(t, svc.Stop(5*time.Second))
}

func TestService_HealthCheck(t *testing.T) {
	var checks int64
	svc := NewBaseService("health-service",
		WithHealthInterval(20*time.Millisecond),
		WithHealthCheck(func() error {
			atomic.AddInt64(&checks, 1)
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	defer func() { _ = svc.Stop(time.Second) }()

	assert.True(t, waitForHealthy(svc, 2*time.Second), "service should become healthy")
	assert.True(t, waitForCondition(func() bool {
		return atomic.LoadInt64(&checks) >= 2
	}, 2*time.Second), "health check should run periodically")

	info := svc.GetStatus()
	assert.Equal(t, "health-service", info.Name)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Positive(t, info.HealthChecks)
	assert.Zero(t, info.FailedHealthChecks)
}

func TestService_HealthCheckFailure(t *testing.T) {
	var transitions atomic.Int32
	failing := atomic.Bool{}

	svc := NewBaseService("flaky-service",
		WithHealthInterval(20*time.Millisecond),
		WithHealthCheck(func() error {
			if failing.Load() {
				return errors.New("backend stalled")
			}
			return nil
		}),
		OnHealthChange(func(bool) {
			transitions.Add(1)
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	defer func() { _ = svc.Stop(time.Second) }()

	require.True(t, waitForHealthy(svc, 2*time.Second))

	failing.Store(true)
	assert.True(t, waitForCondition(func() bool {
		return !svc.IsHealthy()
	}, 2*time.Second), "service should turn unhealthy when checks fail")

	status := svc.Health()
	assert.False(t, status.Healthy)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Positive(t, svc.GetStatus().FailedHealthChecks)

	failing.Store(false)
	assert.True(t, waitForHealthy(svc, 2*time.Second), "service should recover")
	assert.True(t, waitForCondition(func() bool {
		return transitions.Load() >= 2
	}, 2*time.Second), "health change callback should fire on both transitions")
}

func TestService_HealthByLifecycle(t *testing.T) {
	svc := NewBaseService("lifecycle-service", WithHealthInterval(0))

	// Stopped service reports unhealthy.
	status := svc.Health()
	assert.False(t, status.Healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	// Running but the first health probe hasn't fired (interval 0 disables
	// the loop), so the lifecycle switch decides.
	status = svc.Health()
	assert.Equal(t, "lifecycle-service", status.Component)

	require.NoError(t, svc.Stop(time.Second))
	status = svc.Health()
	assert.False(t, status.Healthy)
}

func TestService_MarkFailed(t *testing.T) {
	svc := NewBaseService("doomed-service",
		WithMetrics(metric.NewMetricsRegistry()),
		WithHealthInterval(20*time.Millisecond),
		WithHealthCheck(func() error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	require.True(t, waitForHealthy(svc, 2*time.Second))

	svc.MarkFailed()
	assert.Equal(t, StatusFailed, svc.Status())
	assert.False(t, svc.IsHealthy())

	status := svc.Health()
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Message, "failed")

	// Failed is terminal for health reporting even though the ticker stopped.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusFailed, svc.Status())
}

func TestService_ContextCancellation(t *testing.T) {
	svc := NewBaseService("ctx-service", WithHealthInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, StatusRunning, svc.Status())

	cancel()

	assert.True(t, waitForCondition(func() bool {
		return svc.Status() == StatusStopped
	}, 2*time.Second), "context cancellation should stop the service")
	assert.False(t, svc.IsHealthy())
}

func TestService_RecordActivity(t *testing.T) {
	svc := NewBaseService("busy-service", WithHealthInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer func() { _ = svc.Stop(time.Second) }()

	before := svc.GetStatus()
	for range 5 {
		svc.RecordActivity()
	}
	after := svc.GetStatus()

	assert.Equal(t, before.RequestsHandled+5, after.RequestsHandled)
	assert.True(t, after.LastActivity.After(before.StartTime) || after.LastActivity.Equal(before.StartTime))
	assert.Positive(t, after.Uptime)
}

func TestStatus_String(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusStopped, "stopped"},
		{StatusStarting, "starting"},
		{StatusRunning, "running"},
		{StatusStopping, "stopping"},
		{StatusFailed, "failed"},
		{Status(42), "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.String())
	}
}
