package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"liverelay/pkg/tracing"
	"liverelay/pkg/validation"

	"gopkg.in/yaml.v2"
)

const (
	ModeGenerator = "generator"
	ModePush      = "push"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 keeps streams open indefinitely
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// TrustedProxies lists the proxy IPs/CIDRs whose X-Forwarded-For is
		// believed. Empty means the peer address is always the client.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Relay struct {
		Mode              string        `yaml:"mode"`
		TickInterval      time.Duration `yaml:"tick_interval"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		MaxBodyBytes      int64         `yaml:"max_body_bytes"`
		MaxSubscribers    int           `yaml:"max_subscribers"`
		SubscriberBuffer  int           `yaml:"subscriber_buffer"`
		ValidatePush      bool          `yaml:"validate_push"`

		Paths struct {
			Health string `yaml:"health"`
			SSE    string `yaml:"sse"`
			WS     string `yaml:"ws"`
			Push   string `yaml:"push"`
		} `yaml:"paths"`
	} `yaml:"relay"`

	WebSocket struct {
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
	} `yaml:"websocket"`

	Auth struct {
		Mode           string   `yaml:"mode"` // token | jwt
		PushToken      string   `yaml:"push_token"`
		JWTSecret      string   `yaml:"jwt_secret"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`

	Tracing tracing.Config `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", proxy)
			}
		}
	}

	// Relay
	switch c.Relay.Mode {
	case ModeGenerator:
		if c.Relay.TickInterval <= 0 {
			return fmt.Errorf("relay.tick_interval must be > 0 in generator mode")
		}
	case ModePush:
	default:
		return fmt.Errorf("relay.mode must be %q or %q, got %q", ModeGenerator, ModePush, c.Relay.Mode)
	}
	if c.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("relay.heartbeat_interval must be > 0")
	}
	if c.Relay.MaxBodyBytes <= 0 {
		return fmt.Errorf("relay.max_body_bytes must be > 0")
	}
	if c.Relay.MaxSubscribers < 0 {
		return fmt.Errorf("relay.max_subscribers must be >= 0")
	}
	if c.Relay.SubscriberBuffer <= 0 {
		return fmt.Errorf("relay.subscriber_buffer must be > 0")
	}
	paths := map[string]string{
		"relay.paths.health": c.Relay.Paths.Health,
		"relay.paths.sse":    c.Relay.Paths.SSE,
		"relay.paths.ws":     c.Relay.Paths.WS,
		"relay.paths.push":   c.Relay.Paths.Push,
	}
	seen := make(map[string]string, len(paths))
	for name, p := range paths {
		if err := validation.ValidatePath(p, name); err != nil {
			return err
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("%s and %s must differ, both are %q", name, other, p)
		}
		seen[p] = name
	}

	// WebSocket
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be > 0")
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket.pong_timeout must be greater than websocket.ping_interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket.write_timeout must be > 0")
	}
	if c.WebSocket.MaxMessageSizeBytes <= 0 {
		return fmt.Errorf("websocket.max_message_size_bytes must be > 0")
	}

	// Auth
	switch c.Auth.Mode {
	case "token", "jwt":
	default:
		return fmt.Errorf("auth.mode must be \"token\" or \"jwt\", got %q", c.Auth.Mode)
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled {
		if err := validation.ValidatePath(c.Monitoring.MetricsPath, "monitoring.metrics_path"); err != nil {
			return err
		}
		if other, dup := seen[c.Monitoring.MetricsPath]; dup {
			return fmt.Errorf("monitoring.metrics_path and %s must differ, both are %q", other, c.Monitoring.MetricsPath)
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if err := validation.ValidateURL(c.Tracing.JaegerURL); err != nil {
			return fmt.Errorf("tracing.jaeger_url: %w", err)
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
// A missing file is not an error: defaults plus environment are used.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8787"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 0
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Relay.Mode = ModeGenerator
	cfg.Relay.TickInterval = time.Second
	cfg.Relay.HeartbeatInterval = 15 * time.Second
	cfg.Relay.MaxBodyBytes = 64 * 1024
	cfg.Relay.MaxSubscribers = 0
	cfg.Relay.SubscriberBuffer = 32
	cfg.Relay.ValidatePush = false
	cfg.Relay.Paths.Health = "/health"
	cfg.Relay.Paths.SSE = "/api/live"
	cfg.Relay.Paths.WS = "/api/live/ws"
	cfg.Relay.Paths.Push = "/api/live/push"

	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.PongTimeout = 60 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.WebSocket.MaxMessageSizeBytes = 4 * 1024

	cfg.Auth.Mode = "token"
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "liverelay:points"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	cfg.Tracing = tracing.DefaultConfig()

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if port := os.Getenv("LIVERELAY_PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if addr := os.Getenv("LIVERELAY_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if mode := os.Getenv("LIVERELAY_MODE"); mode != "" {
		c.Relay.Mode = mode
	}
	if tick := os.Getenv("LIVERELAY_TICK_MS"); tick != "" {
		ms, err := strconv.Atoi(tick)
		if err != nil {
			return fmt.Errorf("LIVERELAY_TICK_MS must be an integer: %w", err)
		}
		c.Relay.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if size := os.Getenv("LIVERELAY_MAX_BODY_BYTES"); size != "" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return fmt.Errorf("LIVERELAY_MAX_BODY_BYTES must be an integer: %w", err)
		}
		c.Relay.MaxBodyBytes = n
	}
	if token, ok := os.LookupEnv("LIVERELAY_PUSH_TOKEN"); ok {
		c.Auth.PushToken = token
	}
	if secret := os.Getenv("LIVERELAY_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if level := os.Getenv("LIVERELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("LIVERELAY_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
	return nil
}
