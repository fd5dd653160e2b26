package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"
	"liverelay/internal/core/services"
	httphandlers "liverelay/internal/handlers/http"
	"liverelay/internal/infrastructure/distributed"
	"liverelay/internal/infrastructure/monitoring"
	"liverelay/pkg/circuitbreaker"
	"liverelay/pkg/config"
	"liverelay/pkg/logger"
	"liverelay/pkg/retry"
	"liverelay/pkg/tracing"
	"liverelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// configPaths are tried in order when LIVERELAY_CONFIG is unset.
var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/liverelay/config.yaml",
	"config.yaml",
}

func main() {
	startTime := time.Now()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "liverelay: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	metrics := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	health := monitoring.NewHealthChecker()

	var (
		bus         ports.PointBus
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		redisClient, err = distributed.NewRedisClient(ctx, distributed.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, retry.DefaultConfig(), log)
		cancel()
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}

		instanceID := utils.GenerateInstanceID()
		bus = distributed.NewRedisPointBus(redisClient, cfg.Redis.Channel, instanceID,
			circuitbreaker.New(circuitbreaker.DefaultConfig()), log)
		health.AddRedisCheck(redisClient, 2*time.Second)
		log.Infow("cross-instance fan-out enabled", "channel", cfg.Redis.Channel, "instance_id", instanceID)
	}

	relay := services.NewRelayService(services.RelayConfig{
		Mode:              domain.Mode(cfg.Relay.Mode),
		TickInterval:      cfg.Relay.TickInterval,
		HeartbeatInterval: cfg.Relay.HeartbeatInterval,
		MaxSubscribers:    cfg.Relay.MaxSubscribers,
	}, nil, bus, metrics, log)
	health.AddRelayCheck(relay)

	authorizer := services.NewPushAuthorizer(services.AuthMode(cfg.Auth.Mode), cfg.Auth.PushToken, cfg.Auth.JWTSecret)
	switch {
	case !authorizer.Enabled():
		log.Warnw("push path is unauthenticated", "path", cfg.Relay.Paths.Push)
	case cfg.Auth.Mode == string(services.AuthModeToken):
		log.Infow("push auth enabled", "mode", cfg.Auth.Mode, "token", utils.MaskSensitive(cfg.Auth.PushToken, 2))
	default:
		log.Infow("push auth enabled", "mode", cfg.Auth.Mode)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:     cfg,
		Relay:      relay,
		Authorizer: authorizer,
		Health:     health,
		Metrics:    metrics,
		Gatherer:   prometheus.DefaultGatherer,
		Logger:     zapLogger,
	})

	rootCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if err := relay.Start(rootCtx); err != nil {
		log.Fatalw("failed to start relay", "error", err)
	}

	// WriteTimeout stays 0 unless configured: streams are long-lived responses.
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("live relay listening",
			"address", cfg.Server.Address,
			"mode", cfg.Relay.Mode,
			"sse", cfg.Relay.Paths.SSE,
			"ws", cfg.Relay.Paths.WS,
			"push", cfg.Relay.Paths.Push,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop first: closing every subscriber lets open stream handlers return
	// so Shutdown does not wait on them.
	relay.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Warnw("error closing point bus", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warnw("error closing redis client", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("error shutting down tracer provider", "error", err)
	}

	log.Infow("live relay stopped", "uptime", utils.FormatDuration(time.Since(startTime)))
}

// configPath returns LIVERELAY_CONFIG or the first existing default path.
// An empty result makes config.Load use defaults plus env overrides.
func configPath() string {
	if p := os.Getenv("LIVERELAY_CONFIG"); p != "" {
		return p
	}
	for _, p := range configPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
