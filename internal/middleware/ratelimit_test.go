package middleware

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFetchLimiter_DisabledAlwaysAdmits(t *testing.T) {
	limiter := NewFetchLimiter(&config.RateLimitConfig{Enabled: false}, testLogger())

	for i := 0; i < 100; i++ {
		assert.NoError(t, limiter.Wait(context.Background(), "host"))
	}
}

func TestFetchLimiter_AdmitsWithinBurst(t *testing.T) {
	limiter := NewFetchLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 100,
		Burst:             10,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Wait(ctx, "example.org"))
	}
}

func TestFetchLimiter_CancelledContextAborts(t *testing.T) {
	limiter := NewFetchLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             1,
	}, testLogger())

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx, "example.org"))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(cancelled, "example.org"))
}

func TestFetchLimiter_HostsAreIndependent(t *testing.T) {
	limiter := NewFetchLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             1,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Draining one host's bucket must not block another host.
	require.NoError(t, limiter.Wait(ctx, "a.example.org"))
	require.NoError(t, limiter.Wait(ctx, "b.example.org"))
}
