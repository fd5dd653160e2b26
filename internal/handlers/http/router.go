package http

import (
	"liverelay/internal/core/ports"
	"liverelay/internal/core/services"
	"liverelay/internal/infrastructure/middleware"
	"liverelay/internal/infrastructure/monitoring"
	"liverelay/internal/infrastructure/transport"
	"liverelay/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators the HTTP layer needs.
type RouterDeps struct {
	Config     *config.Config
	Relay      ports.RelayService
	Authorizer ports.PushAuthorizer
	Health     *monitoring.HealthChecker
	Metrics    ports.RelayMetrics
	Gatherer   prometheus.Gatherer // nil disables /metrics
	Logger     *zap.Logger
}

// NewRouter builds the gin engine with the middleware chain and relay routes.
func NewRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config
	if d.Metrics == nil {
		d.Metrics = services.NopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	log := d.Logger.Sugar()

	router := gin.New()
	// gin trusts every proxy by default; only configured ones may set the client IP
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Warnw("ignoring invalid trusted proxies", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLogger(d.Logger),
		middleware.UpgradeGuardMiddleware(cfg.Relay.Paths.WS),
		middleware.TracingMiddleware(),
		middleware.CORSMiddleware(cfg.Auth.AllowedOrigins),
		middleware.PushMetricsMiddleware(cfg.Relay.Paths.Push, d.Metrics),
		middleware.ErrorHandlerMiddleware(log),
	)

	var extra []string
	if d.Gatherer != nil && cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
		extra = append(extra, cfg.Monitoring.MetricsPath)
	}

	handler := NewRelayHandler(d.Relay, d.Authorizer, d.Health, HandlerConfig{
		Paths: Paths{
			Health: cfg.Relay.Paths.Health,
			SSE:    cfg.Relay.Paths.SSE,
			WS:     cfg.Relay.Paths.WS,
			Push:   cfg.Relay.Paths.Push,
		},
		MaxBodyBytes:     cfg.Relay.MaxBodyBytes,
		ValidatePush:     cfg.Relay.ValidatePush,
		SubscriberBuffer: cfg.Relay.SubscriberBuffer,
		Socket: transport.SocketConfig{
			PingInterval: cfg.WebSocket.PingInterval,
			PongTimeout:  cfg.WebSocket.PongTimeout,
			WriteTimeout: cfg.WebSocket.WriteTimeout,
			ReadLimit:    cfg.WebSocket.MaxMessageSizeBytes,
			Buffer:       cfg.Relay.SubscriberBuffer,
		},
		ExtraPaths: extra,
	}, log)

	handler.SetupRoutes(router,
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.PushAuthMiddleware(d.Authorizer),
	)
	return router
}
