package distributed

import (
	"context"
	"fmt"
	"time"

	"liverelay/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions selects the Redis server used by the point bus.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects to Redis, retrying the initial ping with backoff.
func NewRedisClient(ctx context.Context, opts RedisOptions, retryCfg retry.Config, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := retry.Retry(ctx, retryCfg, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}
	return client, nil
}
