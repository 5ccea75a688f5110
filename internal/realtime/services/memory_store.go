package services

import (
	"context"
	"sync"
	"time"

	"optibid/internal/realtime/models"
)

// MemoryConnectionStore is the in-process fallback used when the shared
// cache store is disabled or unavailable at startup. State does not survive
// a process restart.
type MemoryConnectionStore struct {
	mu      sync.RWMutex
	records map[string]*models.ConnectionRecord
	topics  map[string]map[string]struct{}
	ttl     time.Duration
}

func NewMemoryConnectionStore(ttl time.Duration) *MemoryConnectionStore {
	return &MemoryConnectionStore{
		records: make(map[string]*models.ConnectionRecord),
		topics:  make(map[string]map[string]struct{}),
		ttl:     ttl,
	}
}

func (s *MemoryConnectionStore) Backend() string {
	return "memory"
}

func (s *MemoryConnectionStore) AddConnection(_ context.Context, topic, connectionID string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[connectionID] = &models.ConnectionRecord{
		ID:         connectionID,
		Topic:      topic,
		Metadata:   metadata,
		LastSeenAt: time.Now(),
	}

	if s.topics[topic] == nil {
		s.topics[topic] = make(map[string]struct{})
	}
	s.topics[topic][connectionID] = struct{}{}

	return nil
}

func (s *MemoryConnectionStore) RemoveConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(connectionID)
}

func (s *MemoryConnectionStore) removeLocked(connectionID string) error {
	record, ok := s.records[connectionID]
	if !ok {
		return ErrConnectionNotFound
	}

	delete(s.records, connectionID)

	if members, ok := s.topics[record.Topic]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(s.topics, record.Topic)
		}
	}

	return nil
}

func (s *MemoryConnectionStore) ListConnections(_ context.Context, topic string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.topics[topic]
	ids := make([]string, 0, len(members))
	for id := range members {
		if record, ok := s.records[id]; ok && !s.expired(record) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (s *MemoryConnectionStore) GetConnection(_ context.Context, connectionID string) (*models.ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[connectionID]
	if !ok || s.expired(record) {
		return nil, ErrConnectionNotFound
	}

	copied := *record
	return &copied, nil
}

func (s *MemoryConnectionStore) Touch(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[connectionID]
	if !ok {
		return ErrConnectionNotFound
	}

	record.LastSeenAt = time.Now()
	return nil
}

func (s *MemoryConnectionStore) ConnectionCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.records {
		if !s.expired(record) {
			count++
		}
	}

	return count, nil
}

// RemoveExpired evicts records whose heartbeat stopped longer than the TTL
// ago and returns the evicted IDs.
func (s *MemoryConnectionStore) RemoveExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, record := range s.records {
		if s.expired(record) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		_ = s.removeLocked(id)
	}

	return expired
}

func (s *MemoryConnectionStore) expired(record *models.ConnectionRecord) bool {
	if s.ttl <= 0 {
		return false
	}
	return time.Since(record.LastSeenAt) > s.ttl
}
