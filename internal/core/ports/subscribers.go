package ports

import (
	"liverelay/internal/core/domain"
)

// Subscriber is one live output connection. Send must not block: it queues the
// payload or returns an error, and any error means the subscriber is evicted.
type Subscriber interface {
	ID() string
	Transport() domain.Transport
	Send(payload []byte) error
	IsOpen() bool
	Close()
}

// HeartbeatSubscriber is a subscriber that accepts keepalive frames.
type HeartbeatSubscriber interface {
	Subscriber
	Heartbeat() error
}
