package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"
	"liverelay/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Broadcaster fans a payload out to every member of its registries.
// A failing subscriber is evicted; the failure never reaches the caller.
type Broadcaster struct {
	registries map[domain.Transport]*Registry
	metrics    ports.RelayMetrics
	logger     *zap.SugaredLogger
}

func NewBroadcaster(metrics ports.RelayMetrics, logger *zap.SugaredLogger, registries ...*Registry) *Broadcaster {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	byTransport := make(map[domain.Transport]*Registry, len(registries))
	for _, r := range registries {
		byTransport[r.Transport()] = r
	}
	return &Broadcaster{
		registries: byTransport,
		metrics:    metrics,
		logger:     logger,
	}
}

// Registry returns the registry for transport, or nil.
func (b *Broadcaster) Registry(transport domain.Transport) *Registry {
	return b.registries[transport]
}

// Broadcast serializes point once and sends it to every subscriber.
func (b *Broadcaster) Broadcast(ctx context.Context, point domain.DataPoint) (domain.BroadcastResult, error) {
	payload, err := json.Marshal(point)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("failed to marshal data point: %w", err)
	}
	return b.BroadcastRaw(ctx, payload), nil
}

// BroadcastRaw sends an already-encoded JSON payload to every subscriber.
func (b *Broadcaster) BroadcastRaw(ctx context.Context, payload []byte) domain.BroadcastResult {
	_, span := tracing.StartSpan(ctx, "relay.broadcast")
	defer span.End()

	start := time.Now()
	var result domain.BroadcastResult

	for _, transport := range []domain.Transport{domain.TransportSSE, domain.TransportWebSocket} {
		reg := b.registries[transport]
		if reg == nil {
			continue
		}
		reg.ForEach(func(sub ports.Subscriber) {
			if !sub.IsOpen() {
				b.Evict(sub, domain.EvictNotOpen)
				result.Evicted++
				return
			}
			if err := sub.Send(payload); err != nil {
				b.logger.Debugw("evicting subscriber after failed send",
					"subscriber_id", sub.ID(),
					"transport", sub.Transport(),
					"error", err,
				)
				b.Evict(sub, domain.EvictWriteError)
				result.Evicted++
				return
			}
			result.Delivered++
		})
	}

	result.Duration = time.Since(start)
	b.metrics.PayloadSize(len(payload))
	b.metrics.BroadcastCompleted(result)

	span.SetAttributes(
		tracing.DeliveredKey.Int(result.Delivered),
		tracing.EvictedKey.Int(result.Evicted),
		attribute.Int("relay.payload_bytes", len(payload)),
	)
	return result
}

// Evict removes sub from its registry and closes it. Evicting a subscriber
// that is no longer registered does nothing.
func (b *Broadcaster) Evict(sub ports.Subscriber, reason domain.EvictReason) {
	reg := b.registries[sub.Transport()]
	if reg == nil || !reg.Remove(sub) {
		return
	}
	sub.Close()
	b.metrics.SubscriberRemoved(sub.Transport(), reason)
}
