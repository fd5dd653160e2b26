package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"liverelay/internal/core/ports"
	"liverelay/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "liverelay:points"

// Envelope wraps a pushed payload with the id of the instance that received it.
type Envelope struct {
	InstanceID string          `json:"instanceId"`
	Payload    json.RawMessage `json:"payload"`
}

// RedisPointBus shares pushed payloads between relay instances over Redis pub/sub.
type RedisPointBus struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

var _ ports.PointBus = (*RedisPointBus)(nil)

// NewRedisPointBus creates a bus on channel. Publishing is guarded by breaker;
// pass nil for circuitbreaker.DefaultConfig().
func NewRedisPointBus(
	client redis.UniversalClient,
	channel string,
	instanceID string,
	breaker *circuitbreaker.CircuitBreaker,
	logger *zap.SugaredLogger,
) *RedisPointBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("point bus circuit breaker changed state", "from", from, "to", to)
	})

	return &RedisPointBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		breaker:    breaker,
		logger:     logger,
	}
}

// Publish sends payload to every other instance.
func (b *RedisPointBus) Publish(ctx context.Context, payload []byte) error {
	data, err := json.Marshal(Envelope{InstanceID: b.instanceID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	err = b.breaker.Execute(ctx, func() error {
		return b.client.Publish(ctx, b.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish point: %w", err)
	}

	b.logger.Debugw("published point", "channel", b.channel, "bytes", len(payload))
	return nil
}

// Subscribe blocks, calling handler with each payload published by another
// instance, until ctx is done.
func (b *RedisPointBus) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	b.mu.Lock()
	if b.pubsub != nil {
		b.mu.Unlock()
		return fmt.Errorf("already subscribed")
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.pubsub = pubsub
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.pubsub = nil
		b.mu.Unlock()
		_ = pubsub.Close()
	}()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Infow("subscribed to point bus", "channel", b.channel, "instance_id", b.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if payload, ok := b.decode(msg.Payload); ok {
				handler(payload)
			}
		}
	}
}

// decode unwraps an envelope, dropping malformed ones and our own.
func (b *RedisPointBus) decode(raw string) ([]byte, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Warnw("failed to unmarshal point envelope", "error", err)
		return nil, false
	}
	if env.InstanceID == b.instanceID || len(env.Payload) == 0 {
		return nil, false
	}
	return env.Payload, true
}

// Close ends an active subscription.
func (b *RedisPointBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
