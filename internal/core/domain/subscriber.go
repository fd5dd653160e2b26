package domain

// Transport identifies how a subscriber is connected.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "ws"
)

// Mode selects where data points come from.
type Mode string

const (
	// ModeGenerator synthesizes a point every tick.
	ModeGenerator Mode = "generator"
	// ModePush relies on external producers only.
	ModePush Mode = "push"
)

// EvictReason labels why a subscriber left its registry.
type EvictReason string

const (
	EvictDisconnect EvictReason = "disconnect"
	EvictWriteError EvictReason = "write_error"
	EvictNotOpen    EvictReason = "not_open"
	EvictShutdown   EvictReason = "shutdown"
)
