package ports

import (
	"context"
	"time"

	"liverelay/internal/core/domain"
)

type RelayService interface {
	Start(ctx context.Context) error
	Stop()
	Push(ctx context.Context, payload []byte) (domain.BroadcastResult, error)
	AddSubscriber(sub Subscriber) error
	RemoveSubscriber(sub Subscriber, reason domain.EvictReason)
	Stats() domain.RelayStats
}

type PushAuthorizer interface {
	Enabled() bool
	Authorize(authorizationHeader string) bool
}

// PointBus shares pushed payloads between relay instances.
type PointBus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handler func(payload []byte)) error
	Close() error
}

// RelayMetrics receives relay events for monitoring.
type RelayMetrics interface {
	SubscriberAdded(transport domain.Transport)
	SubscriberRemoved(transport domain.Transport, reason domain.EvictReason)
	BroadcastCompleted(result domain.BroadcastResult)
	HeartbeatCompleted(sent, evicted int)
	PushHandled(status int)
	PayloadSize(bytes int)
	TickDuration(d time.Duration)
}
