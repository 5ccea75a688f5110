package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"optibid/internal/realtime/models"

	"github.com/google/uuid"
)

// MessageSender is the transport side of one live connection. The WebSocket
// adapter implements it; tests substitute fakes.
type MessageSender interface {
	Send(message *models.Message) error
	Close() error
}

// Gateway accepts client connections, tracks their subscriptions through the
// selected ConnectionStateStore and fans out topic broadcasts.
type Gateway struct {
	store ConnectionStateStore

	mu         sync.RWMutex
	transports map[string]MessageSender
}

func NewGateway(store ConnectionStateStore) *Gateway {
	return &Gateway{
		store:      store,
		transports: make(map[string]MessageSender),
	}
}

// Store exposes the active connection state store.
func (g *Gateway) Store() ConnectionStateStore {
	return g.store
}

// OnConnect registers a new client on a topic. A failed state-store write is
// fatal for that one connection: the caller gets the error and closes the
// transport; other connections are unaffected.
func (g *Gateway) OnConnect(ctx context.Context, topic string, metadata map[string]string, sender MessageSender) (string, error) {
	connectionID := uuid.New().String()

	if err := g.store.AddConnection(ctx, topic, connectionID, metadata); err != nil {
		return "", fmt.Errorf("failed to register connection: %w", err)
	}

	g.mu.Lock()
	g.transports[connectionID] = sender
	g.mu.Unlock()

	slog.Info("Realtime connection added", "connection_id", connectionID, "topic", topic, "backend", g.store.Backend())

	return connectionID, nil
}

// OnDisconnect removes the connection from the store and closes its
// transport. Unknown IDs are tolerated so implicit and explicit disconnects
// can race.
func (g *Gateway) OnDisconnect(ctx context.Context, connectionID string) {
	g.mu.Lock()
	sender, ok := g.transports[connectionID]
	delete(g.transports, connectionID)
	g.mu.Unlock()

	if ok && sender != nil {
		_ = sender.Close()
	}

	if err := g.store.RemoveConnection(ctx, connectionID); err != nil && !errors.Is(err, ErrConnectionNotFound) {
		slog.Warn("Failed to remove connection from state store", "connection_id", connectionID, "error", err)
	}

	slog.Info("Realtime connection removed", "connection_id", connectionID)
}

// Touch records a client heartbeat.
func (g *Gateway) Touch(ctx context.Context, connectionID string) error {
	return g.store.Touch(ctx, connectionID)
}

// Broadcast delivers a message to every subscriber of a topic. A failed
// transport write is treated as an implicit disconnect: the connection is
// removed and the loop continues with the remaining subscribers.
func (g *Gateway) Broadcast(ctx context.Context, topic string, message *models.Message) (int, error) {
	ids, err := g.store.ListConnections(ctx, topic)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}

	message.Topic = topic
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	delivered := 0
	for _, id := range ids {
		g.mu.RLock()
		sender, ok := g.transports[id]
		g.mu.RUnlock()

		if !ok {
			// Subscribed on another instance, or already torn down locally.
			continue
		}

		if err := sender.Send(message); err != nil {
			slog.Warn("Transport write failed, disconnecting subscriber", "connection_id", id, "topic", topic, "error", err)
			g.OnDisconnect(ctx, id)
			continue
		}
		delivered++
	}

	return delivered, nil
}

// SubscriberCount reports how many connections are subscribed to a topic.
func (g *Gateway) SubscriberCount(ctx context.Context, topic string) (int, error) {
	ids, err := g.store.ListConnections(ctx, topic)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ConnectionCount reports the total number of tracked connections.
func (g *Gateway) ConnectionCount(ctx context.Context) (int, error) {
	return g.store.ConnectionCount(ctx)
}

// LocalConnections lists connections with a transport on this instance.
func (g *Gateway) LocalConnections(ctx context.Context) []models.ConnectionInfo {
	g.mu.RLock()
	ids := make([]string, 0, len(g.transports))
	for id := range g.transports {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	infos := make([]models.ConnectionInfo, 0, len(ids))
	for _, id := range ids {
		record, err := g.store.GetConnection(ctx, id)
		if err != nil {
			continue
		}
		infos = append(infos, models.ConnectionInfo{
			ID:         record.ID,
			Topic:      record.Topic,
			Metadata:   record.Metadata,
			LastSeenAt: record.LastSeenAt,
		})
	}

	return infos
}

// CleanupStale evicts expired fallback-store records and tears down local
// transports whose store record is gone.
func (g *Gateway) CleanupStale(ctx context.Context) {
	if memory, ok := g.store.(*MemoryConnectionStore); ok {
		for _, id := range memory.RemoveExpired() {
			slog.Info("Removing expired connection", "connection_id", id)
			g.OnDisconnect(ctx, id)
		}
	}

	g.mu.RLock()
	ids := make([]string, 0, len(g.transports))
	for id := range g.transports {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		if _, err := g.store.GetConnection(ctx, id); errors.Is(err, ErrConnectionNotFound) {
			slog.Info("Removing connection without state record", "connection_id", id)
			g.OnDisconnect(ctx, id)
		}
	}
}
