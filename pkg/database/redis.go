package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the shared cache client used for connection state and probing.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to the cache store and verifies it with a bounded ping.
func NewRedis(ctx context.Context, redisURL string, timeout time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opt.Addr)

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck performs a bounded ping round-trip.
func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// CapabilityCheck verifies the server answers beyond a bare ping.
func (r *Redis) CapabilityCheck(ctx context.Context) error {
	if err := r.Client.Info(ctx, "server").Err(); err != nil {
		return fmt.Errorf("redis INFO failed: %w", err)
	}
	return nil
}
