package services

import (
	"context"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"

	"go.uber.org/zap"
)

// Heartbeat writes keepalive frames to streaming subscribers so idle
// proxies and load balancers do not drop them.
type Heartbeat struct {
	registry    *Registry
	broadcaster *Broadcaster
	metrics     ports.RelayMetrics
	logger      *zap.SugaredLogger
}

func NewHeartbeat(registry *Registry, broadcaster *Broadcaster, metrics ports.RelayMetrics, logger *zap.SugaredLogger) *Heartbeat {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Heartbeat{
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
}

// Beat sends one keepalive to every member and evicts those that fail.
func (h *Heartbeat) Beat() (sent, evicted int) {
	h.registry.ForEach(func(sub ports.Subscriber) {
		hb, ok := sub.(ports.HeartbeatSubscriber)
		if !ok {
			return
		}
		if !hb.IsOpen() {
			h.broadcaster.Evict(sub, domain.EvictNotOpen)
			evicted++
			return
		}
		if err := hb.Heartbeat(); err != nil {
			h.broadcaster.Evict(sub, domain.EvictWriteError)
			evicted++
			return
		}
		sent++
	})
	h.metrics.HeartbeatCompleted(sent, evicted)
	return sent, evicted
}

// Run beats every interval until ctx is done.
func (h *Heartbeat) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, evicted := h.Beat()
			if evicted > 0 {
				h.logger.Debugw("heartbeat evicted subscribers", "sent", sent, "evicted", evicted)
			}
		}
	}
}
