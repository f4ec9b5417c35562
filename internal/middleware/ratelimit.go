package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FetchLimiter bounds the rate of outgoing media fetches per homeserver
type FetchLimiter interface {
	Wait(ctx context.Context, host string) error
}

// HostLimiter implements per-host rate limiting
type HostLimiter struct {
	enabled  bool
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      int
	burst    int
	logger   *logrus.Logger

	cleanupInterval time.Duration
}

// NewFetchLimiter creates a new fetch limiter
func NewFetchLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) FetchLimiter {
	if !cfg.Enabled {
		return &HostLimiter{enabled: false}
	}

	l := &HostLimiter{
		enabled:         true,
		limiters:        make(map[string]*rate.Limiter),
		rps:             cfg.RequestsPerSecond,
		burst:           cfg.Burst,
		logger:          logger,
		cleanupInterval: 1 * time.Hour,
	}

	// Start cleanup goroutine
	go l.cleanup()

	return l
}

// Wait blocks until the host's limiter admits one fetch or the context ends
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if !l.enabled {
		return nil
	}

	limiter := l.getLimiter(host)
	if err := limiter.Wait(ctx); err != nil {
		l.logger.WithFields(logrus.Fields{
			"host": host,
		}).Warn("Media fetch rate limit wait aborted")
		return err
	}
	return nil
}

// getLimiter gets or creates a rate limiter for a host
func (l *HostLimiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = limiter

	return limiter
}

// cleanup drops idle limiters so rarely-seen hosts don't accumulate
func (l *HostLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		l.limiters = make(map[string]*rate.Limiter)
		l.mu.Unlock()
	}
}
