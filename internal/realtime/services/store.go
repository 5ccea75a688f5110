package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	healthmodels "optibid/internal/health/models"
	"optibid/internal/realtime/models"
	"optibid/pkg/database"
)

// ErrConnectionNotFound is returned by store operations on unknown IDs.
var ErrConnectionNotFound = errors.New("connection not found")

// ConnectionStateStore tracks connected clients and their topic
// subscriptions. Two interchangeable implementations exist: a Redis-backed
// store shared across instances and an in-process fallback.
type ConnectionStateStore interface {
	AddConnection(ctx context.Context, topic, connectionID string, metadata map[string]string) error
	RemoveConnection(ctx context.Context, connectionID string) error
	ListConnections(ctx context.Context, topic string) ([]string, error)
	GetConnection(ctx context.Context, connectionID string) (*models.ConnectionRecord, error)
	Touch(ctx context.Context, connectionID string) error
	ConnectionCount(ctx context.Context) (int, error)

	// Backend names the active implementation for logs and admin output.
	Backend() string
}

// SelectConnectionStore picks the store implementation once at startup from
// the cache probe outcome. The choice is not re-evaluated mid-process: a
// cache recovery after fallback selection does not migrate in-memory state.
func SelectConnectionStore(cacheOutcome healthmodels.ServiceOutcome, cache *database.Redis, ttl time.Duration) ConnectionStateStore {
	if cacheOutcome.State == healthmodels.StateAvailable && cache != nil {
		slog.Info("Realtime connection state backed by shared cache store")
		return NewRedisConnectionStore(cache.Client, ttl)
	}

	slog.Warn("Shared cache store not available, falling back to in-process connection state",
		"cache_state", cacheOutcome.State)
	return NewMemoryConnectionStore(ttl)
}
