package kafka

import (
	"context"
	"sync"
	"time"
)

// ProcessedEventsStore помнит обработанные event_id.
// Outbox публикует at-least-once, поэтому потребитель отсекает повторы сам.
type ProcessedEventsStore interface {
	// MarkProcessed сохраняет eventID на ttl. Повторный вызов продлевает запись.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}

// MemoryProcessedEventsStore in-memory ProcessedEventsStore для утилит и тестов
type MemoryProcessedEventsStore struct {
	mu     sync.Mutex
	events map[string]time.Time // eventID -> expiresAt
	now    func() time.Time
}

// NewMemoryProcessedEventsStore создаёт пустой store
func NewMemoryProcessedEventsStore() *MemoryProcessedEventsStore {
	return &MemoryProcessedEventsStore{
		events: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryProcessedEventsStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cleanupExpiredLocked(now)
	s.events[eventID] = now.Add(ttl)
	return nil
}

func (s *MemoryProcessedEventsStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.events[eventID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.events, eventID)
		return false, nil
	}
	return true, nil
}

// Len число живых записей
func (s *MemoryProcessedEventsStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupExpiredLocked(s.now())
	return len(s.events)
}

// cleanupExpiredLocked вызывается под mu
func (s *MemoryProcessedEventsStore) cleanupExpiredLocked(now time.Time) {
	for id, expiresAt := range s.events {
		if !now.Before(expiresAt) {
			delete(s.events, id)
		}
	}
}
