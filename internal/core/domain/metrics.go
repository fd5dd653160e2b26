package domain

import "time"

// BroadcastResult summarizes one fan-out pass.
type BroadcastResult struct {
	Delivered int
	Evicted   int
	Duration  time.Duration
}

// RelayStats is a point-in-time view of relay state for health reporting.
type RelayStats struct {
	Mode            Mode
	Running         bool
	SSESubscribers  int
	WSSubscribers   int
	LastBroadcastAt time.Time
}
