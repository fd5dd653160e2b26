package monitoring

import (
	"context"
	"errors"
	"time"

	"liverelay/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// RelayStatsSource is the part of the relay the health check reads.
type RelayStatsSource interface {
	Stats() domain.RelayStats
}

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddRelayCheck reports unhealthy once the relay has been stopped.
func (h *HealthChecker) AddRelayCheck(relay RelayStatsSource) {
	h.AddCheck("relay", func(context.Context) (bool, error) {
		if !relay.Stats().Running {
			return false, errors.New("relay not running")
		}
		return true, nil
	}, 0)
}
