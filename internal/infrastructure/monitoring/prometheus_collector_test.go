package monitoring

import (
	"testing"
	"time"

	"liverelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_IndependentRegistries(t *testing.T) {
	// two collectors on separate registries must not collide
	a := NewPrometheusCollector(prometheus.NewRegistry())
	b := NewPrometheusCollector(prometheus.NewRegistry())

	a.SubscriberAdded(domain.TransportSSE)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.subscribers.WithLabelValues("sse")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.subscribers.WithLabelValues("sse")))
}

func TestPrometheusCollector_SubscriberLifecycle(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.SubscriberAdded(domain.TransportWebSocket)
	c.SubscriberAdded(domain.TransportWebSocket)
	c.SubscriberRemoved(domain.TransportWebSocket, domain.EvictWriteError)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscribers.WithLabelValues("ws")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.subscribersTotal.WithLabelValues("ws")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evictionsTotal.WithLabelValues("ws", "write_error")))
}

func TestPrometheusCollector_Broadcasts(t *testing.T) {
	c := NewPrometheusCollector(prometheus.NewRegistry())

	c.BroadcastCompleted(domain.BroadcastResult{Delivered: 3, Evicted: 1, Duration: time.Millisecond})
	c.BroadcastCompleted(domain.BroadcastResult{Delivered: 2})
	c.PayloadSize(200)
	c.HeartbeatCompleted(4, 1)
	c.PushHandled(200)
	c.PushHandled(413)
	c.PushHandled(200)
	c.TickDuration(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.broadcastsTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.deliveriesTotal))
	assert.Equal(t, 200.0, testutil.ToFloat64(c.bytesBroadcast))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.heartbeatsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pushesTotal.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushesTotal.WithLabelValues("413")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tickDuration))
}
