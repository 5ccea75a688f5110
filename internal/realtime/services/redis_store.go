package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"optibid/internal/realtime/models"

	"github.com/redis/go-redis/v9"
)

// Redis key layout for connection state shared across gateway instances.
const (
	connectionKeyPrefix = "realtime:connection:"
	topicKeyPrefix      = "realtime:topic:"
	connectionIndexKey  = "realtime:connections"
)

// RedisConnectionStore keeps connection state in the shared cache store.
// Every operation is a round-trip; failures propagate to the caller, which
// decides how to treat them.
type RedisConnectionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisConnectionStore(client *redis.Client, ttl time.Duration) *RedisConnectionStore {
	return &RedisConnectionStore{client: client, ttl: ttl}
}

func (s *RedisConnectionStore) Backend() string {
	return "redis"
}

func (s *RedisConnectionStore) AddConnection(ctx context.Context, topic, connectionID string, metadata map[string]string) error {
	record := models.ConnectionRecord{
		ID:         connectionID,
		Topic:      topic,
		Metadata:   metadata,
		LastSeenAt: time.Now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal connection record: %w", err)
	}

	if err := s.client.Set(ctx, connectionKeyPrefix+connectionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store connection record: %w", err)
	}

	topicKey := topicKeyPrefix + topic
	if err := s.client.SAdd(ctx, topicKey, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to add connection to topic set: %w", err)
	}
	s.client.Expire(ctx, topicKey, s.ttl)

	if err := s.client.SAdd(ctx, connectionIndexKey, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to index connection: %w", err)
	}

	return nil
}

// RemoveConnection is best-effort: set memberships are cleaned up even when
// the record key already TTL-expired, so vanished connections cannot leak
// index or topic-set members.
func (s *RedisConnectionStore) RemoveConnection(ctx context.Context, connectionID string) error {
	record, err := s.GetConnection(ctx, connectionID)
	if err != nil && !errors.Is(err, ErrConnectionNotFound) {
		return err
	}

	if delErr := s.client.Del(ctx, connectionKeyPrefix+connectionID).Err(); delErr != nil {
		return fmt.Errorf("failed to remove connection record: %w", delErr)
	}

	if record != nil {
		if remErr := s.client.SRem(ctx, topicKeyPrefix+record.Topic, connectionID).Err(); remErr != nil {
			return fmt.Errorf("failed to remove connection from topic set: %w", remErr)
		}
	}

	if remErr := s.client.SRem(ctx, connectionIndexKey, connectionID).Err(); remErr != nil {
		return fmt.Errorf("failed to unindex connection: %w", remErr)
	}

	return err
}

// ListConnections returns the topic members whose record key still exists.
// Members left behind by a TTL-expired record are evicted on the way.
func (s *RedisConnectionStore) ListConnections(ctx context.Context, topic string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, topicKeyPrefix+topic).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list topic connections: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, connectionKeyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check connection record: %w", err)
		}
		if exists == 0 {
			s.client.SRem(ctx, topicKeyPrefix+topic, id)
			s.client.SRem(ctx, connectionIndexKey, id)
			continue
		}
		live = append(live, id)
	}

	return live, nil
}

func (s *RedisConnectionStore) GetConnection(ctx context.Context, connectionID string) (*models.ConnectionRecord, error) {
	data, err := s.client.Get(ctx, connectionKeyPrefix+connectionID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection record: %w", err)
	}

	var record models.ConnectionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection record: %w", err)
	}

	return &record, nil
}

func (s *RedisConnectionStore) Touch(ctx context.Context, connectionID string) error {
	record, err := s.GetConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	record.LastSeenAt = time.Now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal connection record: %w", err)
	}

	if err := s.client.Set(ctx, connectionKeyPrefix+connectionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh connection record: %w", err)
	}
	s.client.Expire(ctx, topicKeyPrefix+record.Topic, s.ttl)

	return nil
}

// ConnectionCount counts index members whose record key still exists,
// evicting the rest so the index tracks live connections only.
func (s *RedisConnectionStore) ConnectionCount(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, connectionIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}

	count := 0
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, connectionKeyPrefix+id).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to check connection record: %w", err)
		}
		if exists == 0 {
			s.client.SRem(ctx, connectionIndexKey, id)
			continue
		}
		count++
	}

	return count, nil
}
