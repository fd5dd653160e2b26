package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"

	"go.uber.org/zap"
)

// RelayConfig holds the relay's runtime settings.
type RelayConfig struct {
	Mode              domain.Mode
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxSubscribers    int // per transport, 0 = unlimited
}

// RelayService owns both subscriber registries, the current point and the
// background tasks (tick, heartbeat, bus) for one relay instance.
type RelayService struct {
	cfg         RelayConfig
	generator   *Generator
	broadcaster *Broadcaster
	heartbeat   *Heartbeat
	bus         ports.PointBus
	metrics     ports.RelayMetrics
	logger      *zap.SugaredLogger

	mu      sync.Mutex
	current *domain.DataPoint
	cancel  context.CancelFunc
	running bool
	stopped bool
	wg      sync.WaitGroup

	lastBroadcast atomic.Int64
}

var _ ports.RelayService = (*RelayService)(nil)

// NewRelayService wires a relay. bus and metrics may be nil.
func NewRelayService(
	cfg RelayConfig,
	generator *Generator,
	bus ports.PointBus,
	metrics ports.RelayMetrics,
	logger *zap.SugaredLogger,
) *RelayService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if generator == nil {
		seed := uint64(time.Now().UnixNano())
		generator = NewGenerator(seed, seed>>1)
	}

	streams := NewRegistry(domain.TransportSSE, cfg.MaxSubscribers)
	sockets := NewRegistry(domain.TransportWebSocket, cfg.MaxSubscribers)
	broadcaster := NewBroadcaster(metrics, logger, streams, sockets)

	return &RelayService{
		cfg:         cfg,
		generator:   generator,
		broadcaster: broadcaster,
		heartbeat:   NewHeartbeat(streams, broadcaster, metrics, logger),
		bus:         bus,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start launches the background tasks. They stop when ctx is cancelled or
// Stop is called.
func (r *RelayService) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("relay already running")
	}
	if r.stopped {
		return domain.ErrRelayStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	if r.cfg.Mode == domain.ModeGenerator && r.cfg.TickInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runTicker(ctx)
		}()
	}

	if r.cfg.HeartbeatInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.heartbeat.Run(ctx, r.cfg.HeartbeatInterval)
		}()
	}

	if r.bus != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			err := r.bus.Subscribe(ctx, func(payload []byte) {
				r.broadcast(ctx, payload)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warnw("point bus subscription ended", "error", err)
			}
		}()
	}

	r.logger.Infow("relay started",
		"mode", r.cfg.Mode,
		"tick_interval", r.cfg.TickInterval,
		"heartbeat_interval", r.cfg.HeartbeatInterval,
		"bus", r.bus != nil,
	)
	return nil
}

// Stop cancels the background tasks, waits for them and closes every
// subscriber. It is safe to call more than once.
func (r *RelayService) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	for _, transport := range []domain.Transport{domain.TransportSSE, domain.TransportWebSocket} {
		r.broadcaster.Registry(transport).ForEach(func(sub ports.Subscriber) {
			r.broadcaster.Evict(sub, domain.EvictShutdown)
		})
	}
	r.logger.Info("relay stopped")
}

func (r *RelayService) runTicker(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := r.Tick(ctx, now); err != nil {
				r.logger.Errorw("tick failed", "error", err)
			}
		}
	}
}

// Tick produces the next synthetic point and broadcasts it.
func (r *RelayService) Tick(ctx context.Context, now time.Time) (domain.DataPoint, error) {
	start := time.Now()

	r.mu.Lock()
	next := r.generator.NextPoint(r.current, now)
	r.current = &next
	r.mu.Unlock()

	result, err := r.broadcaster.Broadcast(ctx, next)
	if err != nil {
		return next, err
	}
	r.lastBroadcast.Store(time.Now().UnixMilli())
	r.metrics.TickDuration(time.Since(start))

	r.logger.Debugw("tick broadcast",
		"timestamp", next.Timestamp,
		"delivered", result.Delivered,
		"evicted", result.Evicted,
	)
	return next, nil
}

// Current returns the last generated point, if any.
func (r *RelayService) Current() (domain.DataPoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.DataPoint{}, false
	}
	return *r.current, true
}

// Push broadcasts an externally produced JSON payload and shares it with
// other instances. Bus failures are logged, never returned.
func (r *RelayService) Push(ctx context.Context, payload []byte) (domain.BroadcastResult, error) {
	if len(payload) == 0 {
		return domain.BroadcastResult{}, domain.ErrEmptyBody
	}

	result := r.broadcast(ctx, payload)

	if r.bus != nil {
		if err := r.bus.Publish(ctx, payload); err != nil {
			r.logger.Warnw("failed to publish pushed point to bus", "error", err)
		}
	}
	return result, nil
}

func (r *RelayService) broadcast(ctx context.Context, payload []byte) domain.BroadcastResult {
	result := r.broadcaster.BroadcastRaw(ctx, payload)
	r.lastBroadcast.Store(time.Now().UnixMilli())
	return result
}

// AddSubscriber registers sub with the registry for its transport.
func (r *RelayService) AddSubscriber(sub ports.Subscriber) error {
	reg := r.broadcaster.Registry(sub.Transport())
	if reg == nil {
		return fmt.Errorf("unsupported transport %q", sub.Transport())
	}

	// held across Add so Stop cannot miss a subscriber added concurrently
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return domain.ErrRelayStopped
	}
	if err := reg.Add(sub); err != nil {
		return err
	}
	r.metrics.SubscriberAdded(sub.Transport())
	r.logger.Debugw("subscriber connected", "subscriber_id", sub.ID(), "transport", sub.Transport())
	return nil
}

// RemoveSubscriber evicts sub. Removing an absent subscriber is a no-op.
func (r *RelayService) RemoveSubscriber(sub ports.Subscriber, reason domain.EvictReason) {
	r.broadcaster.Evict(sub, reason)
}

// Heartbeat sends one keepalive round immediately.
func (r *RelayService) Heartbeat() (sent, evicted int) {
	return r.heartbeat.Beat()
}

func (r *RelayService) Stats() domain.RelayStats {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	stats := domain.RelayStats{
		Mode:           r.cfg.Mode,
		Running:        running,
		SSESubscribers: r.broadcaster.Registry(domain.TransportSSE).Len(),
		WSSubscribers:  r.broadcaster.Registry(domain.TransportWebSocket).Len(),
	}
	if ms := r.lastBroadcast.Load(); ms > 0 {
		stats.LastBroadcastAt = time.UnixMilli(ms)
	}
	return stats
}
