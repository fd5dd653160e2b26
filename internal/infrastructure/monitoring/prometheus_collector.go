package monitoring

import (
	"strconv"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	subscribers *prometheus.GaugeVec

	// Counters
	subscribersTotal *prometheus.CounterVec
	evictionsTotal   *prometheus.CounterVec
	broadcastsTotal  prometheus.Counter
	deliveriesTotal  prometheus.Counter
	heartbeatsTotal  prometheus.Counter
	pushesTotal      *prometheus.CounterVec
	bytesBroadcast   prometheus.Counter

	// Histograms
	broadcastDuration prometheus.Histogram
	tickDuration      prometheus.Histogram
	payloadSize       prometheus.Histogram
}

var _ ports.RelayMetrics = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the relay collectors on reg. Each relay
// instance needs its own registry; pass prometheus.DefaultRegisterer in main.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liverelay_subscribers",
			Help: "Currently connected subscribers",
		}, []string{"transport"}),

		subscribersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liverelay_subscribers_total",
			Help: "Subscribers accepted since start",
		}, []string{"transport"}),

		evictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liverelay_evictions_total",
			Help: "Subscribers removed, by reason",
		}, []string{"transport", "reason"}),

		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liverelay_broadcasts_total",
			Help: "Broadcasts performed",
		}),

		deliveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liverelay_deliveries_total",
			Help: "Payloads queued to subscribers",
		}),

		heartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liverelay_heartbeats_total",
			Help: "Heartbeat frames queued to stream subscribers",
		}),

		pushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liverelay_pushes_total",
			Help: "Push requests by response status",
		}, []string{"status"}),

		bytesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "liverelay_broadcast_bytes_total",
			Help: "Serialized payload bytes broadcast (counted once per broadcast)",
		}),

		broadcastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "liverelay_broadcast_duration_seconds",
			Help:    "Time to enqueue one payload to every subscriber",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "liverelay_tick_duration_seconds",
			Help:    "Time to generate and broadcast one synthetic point",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		payloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "liverelay_payload_size_bytes",
			Help:    "Size of broadcast payloads",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		}),
	}
}

func (p *PrometheusCollector) SubscriberAdded(transport domain.Transport) {
	p.subscribers.WithLabelValues(string(transport)).Inc()
	p.subscribersTotal.WithLabelValues(string(transport)).Inc()
}

func (p *PrometheusCollector) SubscriberRemoved(transport domain.Transport, reason domain.EvictReason) {
	p.subscribers.WithLabelValues(string(transport)).Dec()
	p.evictionsTotal.WithLabelValues(string(transport), string(reason)).Inc()
}

func (p *PrometheusCollector) BroadcastCompleted(result domain.BroadcastResult) {
	p.broadcastsTotal.Inc()
	p.deliveriesTotal.Add(float64(result.Delivered))
	p.broadcastDuration.Observe(result.Duration.Seconds())
}

func (p *PrometheusCollector) HeartbeatCompleted(sent, _ int) {
	p.heartbeatsTotal.Add(float64(sent))
}

func (p *PrometheusCollector) PushHandled(status int) {
	p.pushesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (p *PrometheusCollector) PayloadSize(bytes int) {
	p.payloadSize.Observe(float64(bytes))
	p.bytesBroadcast.Add(float64(bytes))
}

func (p *PrometheusCollector) TickDuration(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}
