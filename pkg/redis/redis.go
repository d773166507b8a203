package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/petalhouse/petalhouse-backend/config"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection")
		return client.Close()
	}
	return nil
}

// AlertGate lets one alert per key through within a window.
type AlertGate struct {
	client *redis.Client
	prefix string
}

func NewAlertGate(c *redis.Client, prefix string) *AlertGate {
	return &AlertGate{client: c, prefix: prefix}
}

// Acquire reports whether the caller is the first to raise key within ttl.
func (g *AlertGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		logger.Error("Failed to acquire alert gate", err, map[string]interface{}{
			"key": g.prefix + key,
		})
		return false, err
	}
	return ok, nil
}
