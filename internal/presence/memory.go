package presence

import (
	"context"
	"sync"
	"time"

	"github.com/eduline/chat-gateway/internal/domain"
)

// MemoryStore is an in-process Store for tests and single-node runs.
// Expiry is checked lazily on read against each record's deadline.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]memoryRecord
}

type memoryRecord struct {
	rec      domain.PresenceRecord
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]memoryRecord)}
}

func (s *MemoryStore) Set(_ context.Context, rec domain.PresenceRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = memoryRecord{rec: rec, deadline: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*domain.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.records[userID]
	if !ok || time.Now().After(entry.deadline) {
		return nil, nil
	}
	rec := entry.rec
	return &rec, nil
}

func (s *MemoryStore) GetMulti(_ context.Context, userIDs []int64) (map[int64]domain.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	records := make(map[int64]domain.PresenceRecord, len(userIDs))
	for _, id := range userIDs {
		if entry, ok := s.records[id]; ok && now.Before(entry.deadline) {
			records[id] = entry.rec
		}
	}
	return records, nil
}

func (s *MemoryStore) Refresh(_ context.Context, userID int64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[userID]
	if !ok || time.Now().After(entry.deadline) {
		return false, nil
	}
	entry.deadline = time.Now().Add(ttl)
	s.records[userID] = entry
	return true, nil
}

// Expire drops a record immediately, simulating TTL lapse in tests.
func (s *MemoryStore) Expire(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
}
