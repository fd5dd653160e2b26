package services

import (
	"time"

	"liverelay/internal/core/domain"
)

// NopMetrics discards all relay metrics.
type NopMetrics struct{}

func (NopMetrics) SubscriberAdded(domain.Transport)                       {}
func (NopMetrics) SubscriberRemoved(domain.Transport, domain.EvictReason) {}
func (NopMetrics) BroadcastCompleted(domain.BroadcastResult)              {}
func (NopMetrics) HeartbeatCompleted(int, int)                            {}
func (NopMetrics) PushHandled(int)                                        {}
func (NopMetrics) PayloadSize(int)                                        {}
func (NopMetrics) TickDuration(time.Duration)                             {}
